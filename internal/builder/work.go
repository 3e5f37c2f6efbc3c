package builder

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/Kube-Engine/Flow/internal/config"
	"github.com/Kube-Engine/Flow/internal/ctxlog"
	"github.com/Kube-Engine/Flow/internal/graph"
)

// task holds everything the work closures of one node need.
type task struct {
	b     *Builder
	p     *Plan
	entry *Entry
	def   *config.TaskDef

	// lastRun is the run counter seen by the most recent execution, used
	// when the notify handler is evaluated later on the owning goroutine.
	lastRun atomic.Uint64
}

func newTask(b *Builder, p *Plan, e *Entry, def *config.TaskDef) *task {
	return &task{b: b, p: p, entry: e, def: def}
}

// work returns the graph work for the task's kind.
func (t *task) work() (any, error) {
	switch {
	case t.def.Graph != "":
		sub, ok := t.p.Lookup(t.def.Graph)
		if !ok {
			return nil, fmt.Errorf("unknown graph %q", t.def.Graph)
		}
		return graph.Subgraph{Graph: sub.Graph}, nil
	case t.def.Select != nil:
		return graph.Switch(t.runSwitch), nil
	case t.def.Condition != nil:
		return graph.Condition(t.runCondition), nil
	case t.def.Argument != nil:
		return graph.Dynamic(t.runDynamic), nil
	case t.def.Handler != "":
		return graph.Static(t.runStatic), nil
	default:
		return graph.Empty, nil
	}
}

func (t *task) logger(ctx context.Context) *slog.Logger {
	return ctxlog.FromContext(ctx).With("graph", t.entry.Def.Name, "task", t.def.Name)
}

// evalContext builds the variables visible to the task's expressions.
func (t *task) evalContext(run uint64, argument *cty.Value) *hcl.EvalContext {
	vars := map[string]cty.Value{
		"run":   cty.NumberUIntVal(run),
		"graph": cty.StringVal(t.entry.Def.Name),
		"task":  cty.StringVal(t.def.Name),
	}
	if argument != nil {
		vars["argument"] = *argument
	}
	return &hcl.EvalContext{Variables: vars}
}

func (t *task) begin() (context.Context, uint64) {
	run := t.entry.Graph.Runs()
	t.lastRun.Store(run)
	return t.p.context(), run
}

// callHandler decodes the task arguments into a fresh input and runs the
// named handler.
func (t *task) callHandler(ctx context.Context, name string, evalCtx *hcl.EvalContext) error {
	h, ok := t.b.registry.Handler(name)
	if !ok {
		return fmt.Errorf("unknown handler %q", name)
	}
	input := h.NewInput()
	if err := t.b.converter.DecodeBody(ctx, input, t.def.Arguments, evalCtx); err != nil {
		return fmt.Errorf("handler %q: %w", name, err)
	}
	ctx = ctxlog.WithLogger(ctx, t.logger(ctx).With("handler", name))
	return h.Fn(ctx, input)
}

func (t *task) runStatic() error {
	ctx, run := t.begin()
	t.logger(ctx).Debug("Running task.")
	return t.callHandler(ctx, t.def.Handler, t.evalContext(run, nil))
}

func (t *task) runDynamic(arg any) error {
	ctx, run := t.begin()
	expr, ok := arg.(hcl.Expression)
	if !ok {
		return fmt.Errorf("argument has type %T, want an expression", arg)
	}
	val, diags := expr.Value(t.evalContext(run, nil))
	if diags.HasErrors() {
		return fmt.Errorf("argument: %w", diags)
	}
	t.logger(ctx).Debug("Running dynamic task.", "argument", val.GoString())
	if t.def.Handler == "" {
		return nil
	}
	return t.callHandler(ctx, t.def.Handler, t.evalContext(run, &val))
}

func (t *task) runSwitch() (int, error) {
	ctx, run := t.begin()
	evalCtx := t.evalContext(run, nil)
	if t.def.Handler != "" {
		if err := t.callHandler(ctx, t.def.Handler, evalCtx); err != nil {
			return 0, err
		}
	}
	val, diags := t.def.Select.Value(evalCtx)
	if diags.HasErrors() {
		return 0, fmt.Errorf("select: %w", diags)
	}
	idx, err := toIndex(val)
	if err != nil {
		return 0, fmt.Errorf("select: %w", err)
	}
	t.logger(ctx).Debug("Selected branch.", "index", idx)
	return idx, nil
}

func (t *task) runCondition() (bool, error) {
	ctx, run := t.begin()
	evalCtx := t.evalContext(run, nil)
	if t.def.Handler != "" {
		if err := t.callHandler(ctx, t.def.Handler, evalCtx); err != nil {
			return false, err
		}
	}
	val, diags := t.def.Condition.Value(evalCtx)
	if diags.HasErrors() {
		return false, fmt.Errorf("condition: %w", diags)
	}
	val, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("condition: %w", err)
	}
	if val.IsNull() || !val.IsKnown() {
		return false, fmt.Errorf("condition: value is null or unknown")
	}
	t.logger(ctx).Debug("Evaluated condition.", "result", val.True())
	return val.True(), nil
}

// notify runs the notify handler with the task's own arguments. It is
// called by the scheduler's owner from ProcessNotifications, so errors are
// collected on the plan instead of returned.
func (t *task) notify() {
	ctx := t.p.context()
	if err := t.callHandler(ctx, t.def.Notify, t.evalContext(t.lastRun.Load(), nil)); err != nil {
		t.logger(ctx).Error("Notify handler failed.", "handler", t.def.Notify, "error", err)
		t.p.recordNotifyError(fmt.Errorf("graph %q: task %q: notify: %w", t.entry.Def.Name, t.def.Name, err))
	}
}

func toIndex(val cty.Value) (int, error) {
	val, err := convert.Convert(val, cty.Number)
	if err != nil {
		return 0, err
	}
	if val.IsNull() || !val.IsKnown() {
		return 0, fmt.Errorf("value is null or unknown")
	}
	if !val.AsBigFloat().IsInt() {
		return 0, fmt.Errorf("value %s is not a whole number", val.AsBigFloat().Text('f', -1))
	}
	var idx int
	if err := gocty.FromCtyValue(val, &idx); err != nil {
		return 0, err
	}
	return idx, nil
}
