package socketio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kube-Engine/Flow/internal/registry"
)

func TestOnEmit_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		want  string
	}{
		{"missing event", Input{URL: "http://localhost:1"}, "event must not be empty"},
		{"bad timeout", Input{URL: "http://localhost:1", Event: "e", Timeout: "later"}, "invalid timeout"},
		{"no host", Input{URL: "localhost", Event: "e"}, "no scheme or host"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorContains(t, OnEmit(context.Background(), &tc.input), tc.want)
		})
	}
}

func TestRegister(t *testing.T) {
	r := registry.New(&Module{})
	_, ok := r.Handler("socketio_emit")
	require.True(t, ok)
	require.NoError(t, r.Validate(context.Background()))
}
