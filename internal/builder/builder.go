package builder

import (
	"context"
	"fmt"

	"github.com/Kube-Engine/Flow/internal/config"
	"github.com/Kube-Engine/Flow/internal/ctxlog"
	"github.com/Kube-Engine/Flow/internal/graph"
	"github.com/Kube-Engine/Flow/internal/registry"
)

// Builder compiles config models into graphs.
type Builder struct {
	registry  *registry.Registry
	converter config.Converter
}

// New creates a builder resolving handlers from r and decoding handler
// inputs with conv.
func New(r *registry.Registry, conv config.Converter) *Builder {
	return &Builder{registry: r, converter: conv}
}

// Build validates model and constructs one graph per definition. Graphs
// share a single node arena.
func (b *Builder) Build(ctx context.Context, model *config.Model) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.", "graphs", len(model.Graphs))

	if err := b.validate(model); err != nil {
		return nil, err
	}
	logger.Debug("Build: Validation passed.")

	p := &Plan{
		byName: make(map[string]*Entry, len(model.Graphs)),
		arena:  graph.NewArena(),
	}
	for _, def := range model.Graphs {
		e := &Entry{
			Def: def,
			Graph: graph.New(
				graph.WithArena(p.arena),
				graph.WithName(def.Name),
				graph.WithRepeat(def.Repeat),
			),
		}
		p.entries = append(p.entries, e)
		p.byName[def.Name] = e
	}

	for _, def := range model.Graphs {
		for _, t := range def.Tasks {
			if t.Graph != "" {
				p.byName[t.Graph].Nested = true
			}
		}
	}

	// Subgraph tasks point at graphs created above, so nodes are emplaced
	// only after every graph exists.
	for _, e := range p.entries {
		if err := b.populate(p, e); err != nil {
			p.Release()
			return nil, err
		}
		logger.Debug("Build: Graph populated.", "graph", e.Def.Name, "nodes", e.Graph.Size())
	}

	logger.Info("Build: Graph construction successful.", "graphs", len(p.entries), "nodes", p.NodeCount())
	return p, nil
}

func (b *Builder) populate(p *Plan, e *Entry) error {
	tasks := make(map[string]graph.Task, len(e.Def.Tasks))
	for _, def := range e.Def.Tasks {
		t := newTask(b, p, e, def)
		opts := []graph.TaskOption{graph.Name(def.Name), graph.Bypass(def.Bypass)}
		if def.Argument != nil {
			opts = append(opts, graph.Argument(def.Argument))
		}
		if def.Notify != "" {
			opts = append(opts, graph.Notify(t.notify))
		}

		work, err := t.work()
		if err != nil {
			return fmt.Errorf("graph %q: task %q: %w", e.Def.Name, def.Name, err)
		}
		tasks[def.Name] = e.Graph.Emplace(work, opts...)
	}

	for _, def := range e.Def.Tasks {
		for _, dep := range def.After {
			tasks[dep].Precede(tasks[def.Name])
		}
	}
	return nil
}
