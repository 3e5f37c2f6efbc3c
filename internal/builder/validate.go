package builder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Kube-Engine/Flow/internal/config"
	"github.com/Kube-Engine/Flow/internal/dag"
)

// ErrInvalidModel wraps every validation failure reported by Build.
var ErrInvalidModel = errors.New("invalid model")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidModel, fmt.Sprintf(format, args...))
}

// kindAttributes lists the attributes that select a node kind.
func kindAttributes(t *config.TaskDef) []string {
	var set []string
	if t.Graph != "" {
		set = append(set, "graph")
	}
	if t.Select != nil {
		set = append(set, "select")
	}
	if t.Condition != nil {
		set = append(set, "condition")
	}
	if t.Argument != nil {
		set = append(set, "argument")
	}
	return set
}

// validate checks a model against the registry. All problems are reported
// together.
func (b *Builder) validate(model *config.Model) error {
	var errs []error
	seen := make(map[string]bool, len(model.Graphs))
	for _, g := range model.Graphs {
		if g.Name == "" {
			errs = append(errs, invalid("graph in %s has no name", g.Source))
			continue
		}
		if seen[g.Name] {
			errs = append(errs, invalid("graph %q defined more than once", g.Name))
			continue
		}
		seen[g.Name] = true
		errs = append(errs, b.validateGraph(model, g)...)
	}
	if err := detectSubgraphCycles(model); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (b *Builder) validateGraph(model *config.Model, g *config.GraphDef) []error {
	var errs []error
	names := make(map[string]*config.TaskDef, len(g.Tasks))
	for _, t := range g.Tasks {
		if _, dup := names[t.Name]; dup {
			errs = append(errs, invalid("graph %q: duplicate task %q", g.Name, t.Name))
			continue
		}
		names[t.Name] = t
	}

	dependents := make(map[string][]*config.TaskDef)
	for _, t := range g.Tasks {
		for _, dep := range t.After {
			dependents[dep] = append(dependents[dep], t)
		}
	}

	for _, t := range g.Tasks {
		where := fmt.Sprintf("graph %q: task %q", g.Name, t.Name)

		if kinds := kindAttributes(t); len(kinds) > 1 {
			errs = append(errs, invalid("%s sets %s; at most one is allowed", where, strings.Join(kinds, " and ")))
		}
		if t.Handler != "" {
			if _, ok := b.registry.Handler(t.Handler); !ok {
				errs = append(errs, invalid("%s uses unknown handler %q", where, t.Handler))
			}
		}
		if t.Notify != "" {
			if _, ok := b.registry.Handler(t.Notify); !ok {
				errs = append(errs, invalid("%s notifies unknown handler %q", where, t.Notify))
			}
		}
		if t.Graph != "" {
			if t.Handler != "" {
				errs = append(errs, invalid("%s sets both graph and handler", where))
			}
			sub, ok := model.Graph(t.Graph)
			switch {
			case !ok:
				errs = append(errs, invalid("%s references unknown graph %q", where, t.Graph))
			case sub.Repeat:
				errs = append(errs, invalid("%s references repeating graph %q", where, t.Graph))
			}
		}

		for _, dep := range t.After {
			if dep == t.Name {
				errs = append(errs, invalid("%s depends on itself", where))
				continue
			}
			target, ok := names[dep]
			if !ok {
				errs = append(errs, invalid("%s depends on unknown task %q", where, dep))
				continue
			}
			if target.Argument != nil {
				errs = append(errs, invalid("%s depends on dynamic task %q, which has no successors", where, dep))
			}
		}

		if t.Select != nil || t.Condition != nil {
			branches := dependents[t.Name]
			if len(branches) == 0 {
				errs = append(errs, invalid("%s selects a branch but nothing depends on it", where))
			}
			if t.Condition != nil && len(branches) != 2 {
				errs = append(errs, invalid("%s is a condition and needs exactly 2 dependents, has %d", where, len(branches)))
			}
			for _, br := range branches {
				if len(br.After) != 1 || len(dependents[br.Name]) != 0 {
					errs = append(errs, invalid("%s: branch %q must depend only on it and have no dependents", where, br.Name))
				}
			}
		}
	}

	if len(errs) == 0 {
		if err := detectTaskCycles(g); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// detectTaskCycles rejects `after` edges that form a cycle.
func detectTaskCycles(g *config.GraphDef) error {
	d := dag.New()
	for _, t := range g.Tasks {
		d.AddNode(t.Name)
	}
	for _, t := range g.Tasks {
		for _, dep := range t.After {
			if err := d.AddEdge(dep, t.Name); err != nil {
				return invalid("graph %q: %v", g.Name, err)
			}
		}
	}
	var cycle *dag.CycleError
	if err := d.DetectCycles(); errors.As(err, &cycle) {
		return invalid("graph %q: dependency cycle: %s", g.Name, strings.Join(cycle.Path, " -> "))
	}
	return nil
}

// detectSubgraphCycles rejects graphs that reach themselves through
// subgraph references.
func detectSubgraphCycles(model *config.Model) error {
	d := dag.New()
	for _, g := range model.Graphs {
		d.AddNode(g.Name)
	}
	for _, g := range model.Graphs {
		for _, t := range g.Tasks {
			if t.Graph == "" {
				continue
			}
			if _, ok := model.Graph(t.Graph); !ok {
				continue
			}
			if t.Graph == g.Name {
				return invalid("subgraph cycle: %s -> %s", g.Name, g.Name)
			}
			if err := d.AddEdge(g.Name, t.Graph); err != nil {
				return invalid("%v", err)
			}
		}
	}
	var cycle *dag.CycleError
	if err := d.DetectCycles(); errors.As(err, &cycle) {
		return invalid("subgraph cycle: %s", strings.Join(cycle.Path, " -> "))
	}
	return nil
}
