package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
)

// Module is the interface that all handler modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Handler is the compiled Go part of a task handler.
type Handler struct {
	// NewInput returns a pointer to a fresh input struct. Fields tagged
	// `flow:"name"` receive the task argument of the same name.
	NewInput func() any
	// Fn runs the handler with a decoded input.
	Fn func(ctx context.Context, input any) error
}

// Typed builds a Handler from a function taking a typed input.
func Typed[T any](fn func(ctx context.Context, input *T) error) *Handler {
	return &Handler{
		NewInput: func() any { return new(T) },
		Fn: func(ctx context.Context, input any) error {
			in, ok := input.(*T)
			if !ok {
				return fmt.Errorf("handler input has type %T, want %T", input, new(T))
			}
			return fn(ctx, in)
		},
	}
}

// Registry holds all the registered handlers for a single application instance.
type Registry struct {
	handlers map[string]*Handler
}

// New creates and initializes a new Registry instance.
func New(modules ...Module) *Registry {
	r := &Registry{handlers: make(map[string]*Handler)}
	r.Use(modules...)
	return r
}

// Use registers every module.
func (r *Registry) Use(modules ...Module) {
	for _, m := range modules {
		m.Register(r)
	}
}

// Register adds a handler. Registering the same name twice is a programming
// error and panics.
func (r *Registry) Register(name string, h *Handler) {
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler with name '%s' already registered", name))
	}
	slog.Debug("Registering handler.", "name", name)
	r.handlers[name] = h
}

// Handler returns the handler registered under name.
func (r *Registry) Handler(name string) (*Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns every registered handler name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type outputKey struct{}

// WithOutput returns a context carrying the writer handlers print to.
func WithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, w)
}

// Output returns the writer stored by WithOutput, or io.Discard.
func Output(ctx context.Context) io.Writer {
	if ctx != nil {
		if w, ok := ctx.Value(outputKey{}).(io.Writer); ok {
			return w
		}
	}
	return io.Discard
}
