package sleep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, OnSleep(context.Background(), &Input{Duration: "20ms"}))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestOnSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := OnSleep(ctx, &Input{Duration: "1h"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOnSleep_InvalidDuration(t *testing.T) {
	assert.ErrorContains(t, OnSleep(context.Background(), &Input{Duration: "soon"}), "invalid duration")
	assert.ErrorContains(t, OnSleep(context.Background(), &Input{Duration: "-1s"}), "must not be negative")
}
