package scheduler

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"

	"github.com/Kube-Engine/Flow/internal/graph"
)

var (
	// ErrSelectorRange is reported when a selector returns an index outside
	// its successors.
	ErrSelectorRange = errors.New("selector index out of range")
	// ErrPanic wraps non-error panic values recovered from work.
	ErrPanic = errors.New("panic")
)

// Fault describes a node whose work failed. Its successors were not fired
// and it was not credited, so its graph stays running.
type Fault struct {
	GraphID uuid.UUID
	Graph   string
	Node    string
	Kind    graph.Kind
	Err     error
}

func (f Fault) Error() string {
	if f.Graph == "" {
		return fmt.Sprintf("%s: %v", f.Node, f.Err)
	}
	return fmt.Sprintf("graph %s: node %s (%s): %v", f.Graph, f.Node, f.Kind, f.Err)
}

func (f Fault) Unwrap() error {
	return f.Err
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPanic, r)
}

// fault reports a node failure. The handler, if any, is queued as a
// notification so it runs on the owning goroutine.
func (s *Scheduler) fault(g *graph.Graph, n *graph.Node, err error) {
	f := Fault{
		GraphID: g.ID(),
		Graph:   g.Label(),
		Node:    n.Label(),
		Kind:    n.Kind(),
		Err:     err,
	}
	s.logger.Error("Node faulted.",
		"graph", f.Graph,
		"node", f.Node,
		"kind", f.Kind.String(),
		"usage", isUsage(err),
		"error", err,
	)
	s.observer.NodeFaulted(f.Graph, f.Node, err)

	if s.onFault == nil {
		return
	}
	handler := s.onFault
	for !s.Notify(func() { handler(f) }) {
		runtime.Gosched()
	}
}
