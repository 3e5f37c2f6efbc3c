package print

import (
	"context"
	"fmt"
	"sort"

	"github.com/Kube-Engine/Flow/internal/ctxlog"
	"github.com/Kube-Engine/Flow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the print handler.
type Input struct {
	Message string            `flow:"message,optional"`
	Values  map[string]string `flow:"values,optional"`
}

// OnPrint writes the message, followed by any values in key order, to the
// output writer carried by ctx.
func OnPrint(ctx context.Context, input *Input) error {
	ctxlog.FromContext(ctx).Debug("Printing input.", "values", len(input.Values))
	out := registry.Output(ctx)

	if input.Message == "" && input.Values == nil {
		_, err := fmt.Fprintln(out, "(null)")
		return err
	}
	if input.Message != "" {
		if _, err := fmt.Fprintln(out, input.Message); err != nil {
			return err
		}
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(input.Values))
	for k := range input.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := fmt.Fprintf(out, "  %s = %q\n", k, input.Values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("print", registry.Typed(OnPrint))
}
