package print

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kube-Engine/Flow/internal/registry"
)

func TestOnPrint(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		want  string
	}{
		{"empty", Input{}, "(null)\n"},
		{"message", Input{Message: "hello"}, "hello\n"},
		{
			"values sorted",
			Input{Message: "run", Values: map[string]string{"b": "2", "a": "1"}},
			"run\n  a = \"1\"\n  b = \"2\"\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := registry.WithOutput(context.Background(), &buf)
			require.NoError(t, OnPrint(ctx, &tc.input))
			assert.Equal(t, tc.want, buf.String())
		})
	}
}

func TestRegister(t *testing.T) {
	r := registry.New(&Module{})
	h, ok := r.Handler("print")
	require.True(t, ok)
	assert.IsType(t, &Input{}, h.NewInput())
	require.NoError(t, r.Validate(context.Background()))
}
