package builder

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Kube-Engine/Flow/internal/config"
	"github.com/Kube-Engine/Flow/internal/graph"
)

// Entry pairs a built graph with its definition.
type Entry struct {
	Def   *config.GraphDef
	Graph *graph.Graph
	// Nested is set when another graph runs this one as a subgraph.
	Nested bool
}

// Plan is the output of Build: every graph of a model, ready to schedule.
type Plan struct {
	entries []*Entry
	byName  map[string]*Entry
	arena   *graph.Arena

	ctx atomic.Pointer[boundContext]

	mu         sync.Mutex
	notifyErrs []error
}

type boundContext struct {
	ctx context.Context
}

// Bind sets the context handed to handlers. Call it before scheduling.
func (p *Plan) Bind(ctx context.Context) {
	p.ctx.Store(&boundContext{ctx: ctx})
}

func (p *Plan) context() context.Context {
	if b := p.ctx.Load(); b != nil {
		return b.ctx
	}
	return context.Background()
}

// Entries returns all graphs in definition order.
func (p *Plan) Entries() []*Entry {
	return p.entries
}

// Roots returns the graphs that no other graph runs as a subgraph.
func (p *Plan) Roots() []*Entry {
	var roots []*Entry
	for _, e := range p.entries {
		if !e.Nested {
			roots = append(roots, e)
		}
	}
	return roots
}

// Lookup returns the entry for a graph name.
func (p *Plan) Lookup(name string) (*Entry, bool) {
	e, ok := p.byName[name]
	return e, ok
}

// Arena returns the node arena shared by all graphs of the plan.
func (p *Plan) Arena() *graph.Arena {
	return p.arena
}

// NodeCount returns the total number of nodes across all graphs.
func (p *Plan) NodeCount() int {
	total := 0
	for _, e := range p.entries {
		total += e.Graph.Size()
	}
	return total
}

// NotifyErrors drains the errors returned by notify handlers since the
// last call.
func (p *Plan) NotifyErrors() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := errors.Join(p.notifyErrs...)
	p.notifyErrs = nil
	return err
}

func (p *Plan) recordNotifyError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifyErrs = append(p.notifyErrs, err)
}

// Release releases every graph of the plan. Graphs must not be running.
func (p *Plan) Release() {
	for _, e := range p.entries {
		e.Graph.Release()
	}
}
