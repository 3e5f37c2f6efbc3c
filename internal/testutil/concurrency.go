package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Kube-Engine/Flow/internal/registry"
)

// ExecutionRecord holds the start and end times of one handler call.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two executions ran at the same time.
func (r ExecutionRecord) Overlaps(other ExecutionRecord) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// SleeperModule registers a "sleeper" handler that sleeps and records when
// each call ran, keyed by its `id` argument.
type SleeperModule struct {
	mu      sync.Mutex
	records map[string][]ExecutionRecord
	order   []string
	sleep   time.Duration
}

// NewSleeperModule creates a sleeper whose calls each take d.
func NewSleeperModule(d time.Duration) *SleeperModule {
	return &SleeperModule{records: make(map[string][]ExecutionRecord), sleep: d}
}

type sleeperInput struct {
	ID string `flow:"id"`
}

// Register registers the "sleeper" handler.
func (m *SleeperModule) Register(r *registry.Registry) {
	r.Register("sleeper", registry.Typed(func(ctx context.Context, in *sleeperInput) error {
		start := time.Now()
		select {
		case <-time.After(m.sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		m.records[in.ID] = append(m.records[in.ID], ExecutionRecord{Start: start, End: time.Now()})
		m.order = append(m.order, in.ID)
		return nil
	}))
}

// Records returns the executions recorded for id.
func (m *SleeperModule) Records(id string) []ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutionRecord(nil), m.records[id]...)
}

// Order returns the ids in completion order.
func (m *SleeperModule) Order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}
