package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/Kube-Engine/Flow/internal/ctxlog"
)

var ctyValueType = reflect.TypeOf(cty.Value{})

// Validate checks that every handler is complete and that each tagged input
// field has a type the converter can decode into.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error

	for _, name := range r.Names() {
		h := r.handlers[name]
		if h == nil || h.Fn == nil {
			errs = append(errs, fmt.Errorf("handler '%s': missing function", name))
			continue
		}
		if h.NewInput == nil {
			errs = append(errs, fmt.Errorf("handler '%s': missing input constructor", name))
			continue
		}

		input := reflect.TypeOf(h.NewInput())
		if input == nil || input.Kind() != reflect.Ptr || input.Elem().Kind() != reflect.Struct {
			errs = append(errs, fmt.Errorf("handler '%s': input must be a pointer to a struct, got %v", name, input))
			continue
		}

		st := input.Elem()
		for i := 0; i < st.NumField(); i++ {
			field := st.Field(i)
			tag := strings.Split(field.Tag.Get("flow"), ",")[0]
			if tag == "" || tag == "-" {
				continue
			}
			if !field.IsExported() {
				errs = append(errs, fmt.Errorf("handler '%s': field %s is tagged but not exported", name, field.Name))
				continue
			}
			if field.Type == ctyValueType || field.Type.Kind() == reflect.Interface {
				continue
			}
			if _, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface()); err != nil {
				errs = append(errs, fmt.Errorf("handler '%s': argument '%s' has unsupported type %s: %w", name, tag, field.Type, err))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Debug("Registry validated.", "handlers", len(r.handlers))
	return nil
}
