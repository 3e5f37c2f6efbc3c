package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific definition loader.
type Loader interface {
	// Load reads every definition file under paths and merges them into a
	// single model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// Converter binds evaluated expressions to the Go input structs of handlers.
type Converter interface {
	// DecodeBody evaluates args with evalCtx and stores each value in the
	// field of input tagged with the same `flow` name. Fields tagged
	// `flow:"name,optional"` may be omitted.
	DecodeBody(ctx context.Context, input any, args map[string]hcl.Expression, evalCtx *hcl.EvalContext) error

	// ToCtyValue converts a native Go value into a cty.Value usable as an
	// expression variable.
	ToCtyValue(v any) (cty.Value, error)
}
