package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/Kube-Engine/Flow/internal/config"
	"github.com/Kube-Engine/Flow/internal/ctxlog"
)

func (l *Loader) translateFile(ctx context.Context, file string, root *fileRoot) (*config.Model, error) {
	model := &config.Model{}
	if s := root.Scheduler; s != nil {
		model.Scheduler = &config.SchedulerSettings{
			Workers:                   deref(s.Workers),
			TaskQueueCapacity:         deref(s.TaskQueueCapacity),
			NotificationQueueCapacity: deref(s.NotificationQueueCapacity),
		}
	}
	for _, gb := range root.Graphs {
		g, err := l.translateGraph(ctx, file, gb)
		if err != nil {
			return nil, err
		}
		model.Graphs = append(model.Graphs, g)
	}
	return model, nil
}

func (l *Loader) translateGraph(ctx context.Context, file string, gb *graphBlock) (*config.GraphDef, error) {
	g := &config.GraphDef{
		Name:   gb.Name,
		Repeat: deref(gb.Repeat),
		Runs:   deref(gb.Runs),
		Source: file,
	}
	if g.Runs < 0 {
		return nil, fmt.Errorf("graph %q in %s: runs must not be negative", g.Name, file)
	}
	for _, tb := range gb.Tasks {
		t, err := l.translateTask(ctx, tb)
		if err != nil {
			return nil, fmt.Errorf("graph %q in %s: %w", g.Name, file, err)
		}
		g.Tasks = append(g.Tasks, t)
	}
	return g, nil
}

func (l *Loader) translateTask(ctx context.Context, tb *taskBlock) (*config.TaskDef, error) {
	t := &config.TaskDef{
		Name:    tb.Name,
		Handler: deref(tb.Handler),
		Graph:   deref(tb.Graph),
		After:   tb.After,
		Bypass:  deref(tb.Bypass),
		Notify:  deref(tb.Notify),
	}
	if isExprDefined(ctx, tb.Select, "select") {
		t.Select = tb.Select
	}
	if isExprDefined(ctx, tb.Condition, "condition") {
		t.Condition = tb.Condition
	}
	if isExprDefined(ctx, tb.Argument, "argument") {
		t.Argument = tb.Argument
	}
	if tb.Arguments != nil && tb.Arguments.Body != nil {
		attrs, diags := tb.Arguments.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("task %q: invalid arguments block: %w", tb.Name, diags)
		}
		t.Arguments = make(map[string]hcl.Expression, len(attrs))
		for name, attr := range attrs {
			t.Arguments[name] = attr.Expr
		}
	}
	return t, nil
}

// isExprDefined checks if an HCL expression was actually present in the
// source. gohcl fills omitted optional expression fields with zero-width
// placeholders, so a nil check is insufficient.
func isExprDefined(ctx context.Context, expr hcl.Expression, attrName string) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	defined := r.End.Byte > r.Start.Byte
	ctxlog.FromContext(ctx).Debug("Checking if HCL attribute was explicitly defined.",
		"attribute", attrName,
		"hcl_range", r.String(),
		"is_defined", defined,
	)
	return defined
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
