package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Kube-Engine/Flow/internal/graph"
	"github.com/Kube-Engine/Flow/internal/queue"
)

// ErrClosed is raised when scheduling on a closed scheduler.
var ErrClosed = fmt.Errorf("%w: scheduler is closed", graph.ErrUsage)

// Scheduler owns a pool of workers and the notification queue.
type Scheduler struct {
	cfg           Config
	logger        *slog.Logger
	observer      Observer
	onFault       func(Fault)
	workers       []*Worker
	notifications *queue.Queue[func()]
	lastWorker    atomic.Uint64
	pending       atomic.Int64
	closing       atomic.Bool
	closeOnce     sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Records are tagged with component=scheduler.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver installs execution hooks.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithFaultHandler sets the function receiving node faults. It is invoked
// through the notification queue, on the goroutine that calls
// ProcessNotifications.
func WithFaultHandler(fn func(Fault)) Option {
	return func(s *Scheduler) { s.onFault = fn }
}

// New validates cfg and starts the workers.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	s := &Scheduler{
		cfg:      cfg,
		logger:   slog.Default(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")

	notifications, err := queue.New[func()](cfg.NotificationQueueCapacity)
	if err != nil {
		return nil, err
	}
	s.notifications = notifications

	s.workers = make([]*Worker, cfg.Workers)
	for i := range s.workers {
		w, err := newWorker(i, s, cfg.TaskQueueCapacity)
		if err != nil {
			return nil, err
		}
		s.workers[i] = w
	}
	for _, w := range s.workers {
		w.start()
	}

	s.logger.Debug("Scheduler started.",
		"workers", cfg.Workers,
		"task_queue", cfg.TaskQueueCapacity,
		"notification_queue", cfg.NotificationQueueCapacity,
	)
	return s, nil
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// WorkerCount returns the number of workers.
func (s *Scheduler) WorkerCount() int { return len(s.workers) }

// Workers returns a snapshot of every worker.
func (s *Scheduler) Workers() []WorkerInfo {
	out := make([]WorkerInfo, len(s.workers))
	for i, w := range s.workers {
		out[i] = w.info()
	}
	return out
}

// Pending returns the number of nodes queued or executing.
func (s *Scheduler) Pending() int { return int(s.pending.Load()) }

// Schedule starts a run of g. Scheduling a graph that is already running,
// or scheduling on a closed scheduler, is a usage fault. An empty graph
// completes immediately.
func (s *Scheduler) Schedule(g *graph.Graph) {
	if s.closing.Load() {
		graph.Fault("schedule", ErrClosed)
	}
	if g.SetRunning(true) {
		graph.Fault("schedule", graph.ErrScheduleRunning)
	}
	s.start(g, nil)
}

// start dispatches the sources of g. Called with a nil worker from
// submitting goroutines, which yield until a queue accepts each source.
func (s *Scheduler) start(g *graph.Graph, w *Worker) {
	g.Begin()
	if g.Size() == 0 {
		s.logger.Debug("Empty graph completed.", "graph", g.Label())
		g.SetRunning(false)
		return
	}
	sources := g.Sources()
	s.logger.Debug("Scheduling graph.", "graph", g.Label(), "nodes", g.Size(), "sources", len(sources))
	for _, n := range sources {
		if w != nil {
			s.dispatch(w, n)
			continue
		}
		s.pending.Add(1)
		for !s.pushRoundRobin(n) {
			runtime.Gosched()
		}
	}
}

// pushRoundRobin offers n to each worker once, starting after the last
// worker that received a node.
func (s *Scheduler) pushRoundRobin(n *graph.Node) bool {
	count := uint64(len(s.workers))
	for range count {
		idx := s.lastWorker.Add(1) % count
		if s.workers[idx].queue.Push(n) {
			return true
		}
	}
	return false
}

// dispatch queues a ready node found by w: local queue first, then one
// round-robin pass, then inline execution.
func (s *Scheduler) dispatch(w *Worker, n *graph.Node) {
	s.pending.Add(1)
	if w.queue.Push(n) {
		return
	}
	if s.pushRoundRobin(n) {
		return
	}
	s.execute(w, n)
}

// trySteal pops one node from another worker's queue, scanning from a
// rotating victim.
func (s *Scheduler) trySteal(thief *Worker) (*graph.Node, bool) {
	count := len(s.workers)
	for range count - 1 {
		victim := thief.victim % count
		thief.victim++
		if victim == thief.id {
			victim = thief.victim % count
			thief.victim++
		}
		if n, ok := s.workers[victim].queue.Pop(); ok {
			s.observer.NodeStolen(thief.id)
			return n, true
		}
	}
	return nil, false
}

// Wait blocks until no scheduled node is queued or executing.
func (s *Scheduler) Wait() {
	for s.pending.Load() > 0 {
		runtime.Gosched()
	}
}

// WaitContext is Wait bounded by ctx.
func (s *Scheduler) WaitContext(ctx context.Context) error {
	for s.pending.Load() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

// Pause asks every worker to stop taking work once its current node finishes.
func (s *Scheduler) Pause() {
	for _, w := range s.workers {
		w.pause()
	}
	s.logger.Debug("Workers paused.")
}

// Resume restarts paused workers.
func (s *Scheduler) Resume() {
	for _, w := range s.workers {
		w.resume()
	}
	s.logger.Debug("Workers resumed.")
}

// Close stops and joins every worker. Queued nodes are dropped. Close is
// idempotent.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		for _, w := range s.workers {
			w.stop()
		}
		dropped := 0
		for _, w := range s.workers {
			dropped += w.queue.Len()
		}
		if dropped > 0 {
			s.logger.Warn("Scheduler stopped with queued nodes.", "dropped", dropped)
			return
		}
		s.logger.Debug("Scheduler stopped.", "workers", len(s.workers))
	})
	return nil
}

// Submit runs work on the pool and queues event with its result. event
// runs on the goroutine that calls ProcessNotifications.
func (s *Scheduler) Submit(work func() (any, error), event func(any, error)) {
	var (
		result any
		err    error
	)
	g := graph.New(graph.WithName("submit"))
	g.Emplace(func() { result, err = work() }, graph.Notify(func() {
		if event != nil {
			event(result, err)
		}
	}))
	s.Schedule(g)
}

func isUsage(err error) bool {
	return errors.Is(err, graph.ErrUsage)
}
