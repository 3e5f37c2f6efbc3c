package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"golang.org/x/sync/errgroup"

	"github.com/Kube-Engine/Flow/internal/builder"
	"github.com/Kube-Engine/Flow/internal/ctxlog"
	"github.com/Kube-Engine/Flow/internal/registry"
	"github.com/Kube-Engine/Flow/internal/scheduler"
)

const pollInterval = time.Millisecond

// errFaulted stops the run loop once a fault has been reported.
var errFaulted = errors.New("node faulted")

// faultLog collects the faults delivered by the scheduler.
type faultLog struct {
	mu     sync.Mutex
	faults []error
}

func (l *faultLog) add(f scheduler.Fault) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults = append(l.faults, f)
}

func (l *faultLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.faults)
}

func (l *faultLog) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(l.faults...)
}

// Run starts the scheduler and the optional health server, runs every root
// graph and prints a summary. Repeating graphs run until ctx is done. The
// returned error joins all faults. Run may be called once.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	ctx = registry.WithOutput(ctx, a.outW)
	// Cancelling ctx stops scheduling; nodes already running finish within
	// the drain timeout.
	a.plan.Bind(context.WithoutCancel(ctx))
	a.logger.Debug("App.Run method started.")

	faults := &faultLog{}
	sched, err := scheduler.New(a.sched,
		scheduler.WithLogger(a.logger),
		scheduler.WithObserver(a.collector),
		scheduler.WithFaultHandler(faults.add),
	)
	if err != nil {
		return err
	}

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	stopHealth := func() {}
	if a.cfg.HealthcheckPort > 0 {
		srv := a.newHealthServer(sched)
		g.Go(func() error { return a.serveHealth(srv) })
		stopHealth = func() { a.shutdownHealth(srv) }
	}
	g.Go(func() error {
		defer stopHealth()
		return a.execute(gctx, sched, faults)
	})
	runErr := g.Wait()
	if errors.Is(runErr, errFaulted) {
		runErr = nil
	}

	if err := sched.Close(); err != nil {
		a.logger.Error("Scheduler close failed.", "error", err)
	}
	if err := a.printSummary(time.Since(started), faults.len()); err != nil {
		runErr = errors.Join(runErr, err)
	}
	a.releaseIdle()

	if err := errors.Join(runErr, faults.err(), a.plan.NotifyErrors()); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// execute schedules the root graphs. Non-repeating graphs run in rounds:
// every graph whose run count is not yet reached is scheduled, then the
// round is awaited while notifications are processed.
func (a *App) execute(ctx context.Context, sched *scheduler.Scheduler, faults *faultLog) error {
	var once, repeating []*builder.Entry
	for _, e := range a.plan.Roots() {
		if e.Def.Repeat {
			repeating = append(repeating, e)
		} else {
			once = append(once, e)
		}
	}
	if len(once)+len(repeating) == 0 {
		a.logger.Warn("No graphs found, execution not required.")
		return nil
	}

	a.logger.Info("Starting concurrent execution.", "graphs", len(once)+len(repeating), "workers", sched.WorkerCount())
	for _, e := range repeating {
		sched.Schedule(e.Graph)
	}

	err := a.runRounds(ctx, sched, faults, once)
	if err == nil && len(repeating) > 0 {
		a.logger.Info("Repeating graphs running until cancelled.", "graphs", len(repeating))
		err = a.pump(ctx, sched, faults)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	}

	for _, e := range repeating {
		e.Graph.SetRepeat(false)
	}
	a.drain(sched, faults)
	if err == nil && faults.len() > 0 {
		err = errFaulted
	}
	a.logger.Info("Execution finished.")
	return err
}

func (a *App) runRounds(ctx context.Context, sched *scheduler.Scheduler, faults *faultLog, entries []*builder.Entry) error {
	for round := 0; ; round++ {
		var batch []*builder.Entry
		for _, e := range entries {
			if round < a.runCount(e) {
				batch = append(batch, e)
			}
		}
		if len(batch) == 0 {
			return nil
		}
		for _, e := range batch {
			sched.Schedule(e.Graph)
		}
		if err := a.await(ctx, sched, faults, batch); err != nil {
			return err
		}
		a.logger.Debug("Round completed.", "round", round, "graphs", len(batch))
	}
}

// await processes notifications until every entry finished, a fault is
// reported or ctx is done.
func (a *App) await(ctx context.Context, sched *scheduler.Scheduler, faults *faultLog, entries []*builder.Entry) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		sched.ProcessNotifications()
		if faults.len() > 0 {
			return errFaulted
		}
		done := true
		for _, e := range entries {
			if e.Graph.Running() {
				done = false
				break
			}
		}
		if done {
			sched.ProcessNotifications()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pump processes notifications until ctx is done or a fault is reported.
func (a *App) pump(ctx context.Context, sched *scheduler.Scheduler, faults *faultLog) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		sched.ProcessNotifications()
		if faults.len() > 0 {
			return errFaulted
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// drain waits up to the drain timeout for in-flight nodes, processing
// notifications meanwhile.
func (a *App) drain(sched *scheduler.Scheduler, faults *faultLog) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.DrainTimeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for sched.Pending() > 0 {
		sched.ProcessNotifications()
		select {
		case <-ctx.Done():
			a.logger.Warn("Drain timed out with nodes still pending.", "pending", sched.Pending())
			return
		case <-ticker.C:
		}
	}
	sched.ProcessNotifications()
}

// releaseIdle releases graphs that are not running. Faulted graphs never
// finish and are left to the garbage collector.
func (a *App) releaseIdle() {
	for _, e := range a.plan.Entries() {
		if !e.Graph.Running() {
			e.Graph.Release()
		}
	}
}

func (a *App) printSummary(elapsed time.Duration, faultCount int) error {
	var runs, nodes int64
	for _, e := range a.plan.Entries() {
		if e.Nested {
			continue
		}
		r := int64(e.Graph.Runs())
		runs += r
		nodes += r * int64(e.Graph.Size())
	}
	_, err := fmt.Fprintf(a.outW, "Completed %s (%s nodes) in %s with %s.\n",
		english.Plural(int(runs), "graph run", "graph runs"),
		humanize.Comma(nodes),
		elapsed.Round(time.Millisecond),
		english.Plural(faultCount, "fault", "faults"),
	)
	return err
}
