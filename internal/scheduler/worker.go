package scheduler

import (
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/Kube-Engine/Flow/internal/graph"
	"github.com/Kube-Engine/Flow/internal/queue"
)

// State is the lifecycle state of a worker.
type State int32

const (
	StateWaiting State = iota
	StateWorking
	StatePause
	StateResume
	StateStop
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateWorking:
		return "working"
	case StatePause:
		return "paused"
	case StateResume:
		return "resuming"
	case StateStop:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WorkerInfo is a snapshot of one worker for introspection.
type WorkerInfo struct {
	ID     int    `json:"id"`
	State  string `json:"state"`
	Queued int    `json:"queued"`
}

// Worker owns a local queue and a goroutine executing nodes from it.
// Only the worker goroutine moves between Waiting and Working; other
// goroutines request Pause, Resume and Stop, which are accepted only while
// the worker is not Working.
type Worker struct {
	id     int
	sched  *Scheduler
	queue  *queue.Queue[*graph.Node]
	state  atomic.Int32
	victim int
	done   chan struct{}
	logger *slog.Logger
}

func newWorker(id int, s *Scheduler, capacity int) (*Worker, error) {
	q, err := queue.New[*graph.Node](capacity)
	if err != nil {
		return nil, err
	}
	return &Worker{
		id:     id,
		sched:  s,
		queue:  q,
		victim: id + 1,
		done:   make(chan struct{}),
		logger: s.logger.With("worker", id),
	}, nil
}

// ID returns the worker index.
func (w *Worker) ID() int { return w.id }

// State returns the current state.
func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) info() WorkerInfo {
	return WorkerInfo{ID: w.id, State: w.State().String(), Queued: w.queue.Len()}
}

func (w *Worker) start() {
	go w.run()
}

func (w *Worker) run() {
	defer close(w.done)
	w.logger.Debug("Worker started.")

	for {
		switch State(w.state.Load()) {
		case StateWaiting:
			if !w.state.CompareAndSwap(int32(StateWaiting), int32(StateWorking)) {
				continue
			}
			n, ok := w.next()
			if ok {
				w.sched.execute(w, n)
			}
			w.state.Store(int32(StateWaiting))
			if !ok {
				runtime.Gosched()
			}
		case StatePause:
			runtime.Gosched()
		case StateResume:
			w.state.CompareAndSwap(int32(StateResume), int32(StateWaiting))
		case StateStop:
			w.state.Store(int32(StateStopped))
			w.logger.Debug("Worker finished.")
			return
		default:
			runtime.Gosched()
		}
	}
}

// next pops the local queue, then tries to steal.
func (w *Worker) next() (*graph.Node, bool) {
	if n, ok := w.queue.Pop(); ok {
		return n, true
	}
	return w.sched.trySteal(w)
}

// help executes one ready node while the caller waits on a subgraph.
func (w *Worker) help() bool {
	n, ok := w.next()
	if ok {
		w.sched.execute(w, n)
	}
	return ok
}

// request moves the worker from any of the from states to target, retrying
// until the worker leaves Working. It returns false if the worker is in
// none of the from states and not Working.
func (w *Worker) request(target State, from ...State) bool {
	for {
		cur := State(w.state.Load())
		accepted := false
		for _, f := range from {
			if cur == f {
				accepted = true
				break
			}
		}
		if accepted {
			if w.state.CompareAndSwap(int32(cur), int32(target)) {
				return true
			}
			continue
		}
		if cur != StateWorking {
			return false
		}
		runtime.Gosched()
	}
}

func (w *Worker) pause() bool {
	return w.request(StatePause, StateWaiting, StateResume)
}

func (w *Worker) resume() bool {
	return w.request(StateResume, StatePause)
}

func (w *Worker) stop() {
	w.request(StateStop, StateWaiting, StatePause, StateResume)
	<-w.done
}
