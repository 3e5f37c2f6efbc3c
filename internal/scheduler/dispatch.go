package scheduler

import (
	"fmt"
	"runtime"
	"time"

	"github.com/Kube-Engine/Flow/internal/graph"
)

// execute runs one node on w and propagates its completion.
func (s *Scheduler) execute(w *Worker, n *graph.Node) {
	defer s.pending.Add(-1)

	g := n.Graph()
	started := time.Now()

	choice, err := s.invoke(w, n)
	if err == nil && n.Kind().IsSelector() && (choice < 0 || choice >= n.OutDegree()) {
		err = fmt.Errorf("%w: index %d, %d successors", ErrSelectorRange, choice, n.OutDegree())
	}
	if err != nil {
		s.fault(g, n, err)
		return
	}

	credit := 1
	switch n.Kind() {
	case graph.KindStatic, graph.KindGraph:
		for i := range n.OutDegree() {
			s.fire(w, n.Successor(i))
		}
	case graph.KindSwitch, graph.KindCondition:
		s.fire(w, n.Successor(choice))
		credit = n.OutDegree()
	case graph.KindDynamic:
	}

	s.observer.NodeExecuted(g.Label(), n.Label(), n.Kind(), time.Since(started))

	if cb := n.Notification(); cb != nil {
		for !s.Notify(cb) {
			runtime.Gosched()
		}
	}

	if g.ChildrenJoined(credit) {
		s.finish(w, g)
	}
}

// invoke calls the node's work, converting panics into errors. For
// selectors it returns the chosen successor index.
func (s *Scheduler) invoke(w *Worker, n *graph.Node) (choice int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	if n.Bypass() {
		return 0, nil
	}

	switch work := n.Work().(type) {
	case graph.Static:
		return 0, work()
	case graph.Dynamic:
		return 0, work(n.Argument())
	case graph.Switch:
		return work()
	case graph.Condition:
		ok, err := work()
		if ok {
			return 1, err
		}
		return 0, err
	case graph.Subgraph:
		return 0, s.runSubgraph(w, work.Graph)
	default:
		return 0, fmt.Errorf("%w: %T", graph.ErrUnsupportedWork, work)
	}
}

// runSubgraph schedules sub and executes other ready nodes until it
// finishes. When another node is already running sub, w helps until that
// run ends and then claims the graph for its own run.
func (s *Scheduler) runSubgraph(w *Worker, sub *graph.Graph) error {
	if sub.Repeat() {
		return &graph.UsageError{Op: "subgraph", Err: graph.ErrRepeatingSubgraph}
	}
	for sub.SetRunning(true) {
		if err := s.helpWhile(w, sub); err != nil {
			return err
		}
	}
	s.start(sub, w)
	return s.helpWhile(w, sub)
}

// helpWhile executes ready nodes on w while sub is running.
func (s *Scheduler) helpWhile(w *Worker, sub *graph.Graph) error {
	for sub.Running() {
		if s.closing.Load() {
			return fmt.Errorf("subgraph %s: %w", sub.Label(), ErrClosed)
		}
		if !w.help() {
			runtime.Gosched()
		}
	}
	return nil
}

// fire completes one incoming edge of succ and dispatches it when it was
// the last one.
func (s *Scheduler) fire(w *Worker, succ *graph.Node) {
	if succ.Join() {
		s.dispatch(w, succ)
	}
}

// finish closes a run. Repeating graphs are started again right away.
func (s *Scheduler) finish(w *Worker, g *graph.Graph) {
	elapsed := g.Elapsed()
	runs := g.Finish()
	s.observer.GraphCompleted(g.Label(), elapsed)
	s.logger.Debug("Graph run completed.", "graph", g.Label(), "run", runs, "elapsed", elapsed)

	if g.Repeat() {
		s.start(g, w)
		return
	}
	g.SetRunning(false)
}
