package testutil

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireUsageFault runs fn and asserts that it panics with an error
// matching target.
func RequireUsageFault(t *testing.T, target error, fn func()) {
	t.Helper()

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()

	require.NotNil(t, recovered, "expected a panic matching %v", target)
	err, ok := recovered.(error)
	require.True(t, ok, "panic value %v is not an error", recovered)
	require.True(t, errors.Is(err, target), "panic %v does not match %v", err, target)
}

// AssertLogContains checks that the captured log output contains every
// key=value pair, in any order, on a single line.
func AssertLogContains(t *testing.T, logs string, msg string, kv ...any) {
	t.Helper()

	for _, line := range strings.Split(logs, "\n") {
		if !strings.Contains(line, msg) {
			continue
		}
		matched := true
		for i := 0; i+1 < len(kv); i += 2 {
			if !strings.Contains(line, fmt.Sprintf("%v=%v", kv[i], kv[i+1])) {
				matched = false
				break
			}
		}
		if matched {
			return
		}
	}
	require.Failf(t, "log line not found", "message %q with %v not found in:\n%s", msg, kv, logs)
}
