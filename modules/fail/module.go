package fail

import (
	"context"
	"errors"

	"github.com/Kube-Engine/Flow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// ErrFailed is returned when no message is given.
var ErrFailed = errors.New("task failed")

// Input defines the arguments for the fail handler.
type Input struct {
	Message string `flow:"message,optional"`
}

// OnFail always returns an error.
func OnFail(_ context.Context, input *Input) error {
	if input.Message == "" {
		return ErrFailed
	}
	return errors.New(input.Message)
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("fail", registry.Typed(OnFail))
}
