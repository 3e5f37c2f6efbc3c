package sleep

import (
	"context"
	"fmt"
	"time"

	"github.com/Kube-Engine/Flow/internal/ctxlog"
	"github.com/Kube-Engine/Flow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the sleep handler.
type Input struct {
	Duration string `flow:"duration"`
}

// OnSleep blocks for the given duration or until ctx is done.
func OnSleep(ctx context.Context, input *Input) error {
	d, err := time.ParseDuration(input.Duration)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", input.Duration, err)
	}
	if d < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", input.Duration)
	}
	ctxlog.FromContext(ctx).Debug("Sleeping.", "duration", d)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("sleep", registry.Typed(OnSleep))
}
