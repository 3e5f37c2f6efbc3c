package graph

import (
	"errors"
	"fmt"
)

// ErrUsage is the root of every caller-contract violation. Usage faults are
// raised with panic(*UsageError) at the call site because continuing would
// corrupt state shared with running workers.
var ErrUsage = errors.New("usage fault")

var (
	// ErrWaitRepeating is raised when waiting on a graph that reschedules itself.
	ErrWaitRepeating = fmt.Errorf("%w: waiting a repeating graph never returns", ErrUsage)
	// ErrReleaseRunning is raised when the last handle of a running graph is released.
	ErrReleaseRunning = fmt.Errorf("%w: releasing a running graph", ErrUsage)
	// ErrReleaseBorrowed is raised when a handle obtained from a node or task is released.
	ErrReleaseBorrowed = fmt.Errorf("%w: releasing a borrowed graph handle", ErrUsage)
	// ErrReleaseReleased is raised when more references are released than were taken.
	ErrReleaseReleased = fmt.Errorf("%w: graph reference already released", ErrUsage)
	// ErrStaleTask is raised when a Task outlives the node it referenced.
	ErrStaleTask = fmt.Errorf("%w: task handle refers to a cleared or unknown node", ErrUsage)
	// ErrForeignTask is raised when linking tasks owned by different graphs.
	ErrForeignTask = fmt.Errorf("%w: tasks belong to different graphs", ErrUsage)
	// ErrUnsupportedWork is raised when a value cannot be turned into Work.
	ErrUnsupportedWork = fmt.Errorf("%w: unsupported work type", ErrUsage)
	// ErrNilGraph is raised when a subgraph reference was never constructed.
	ErrNilGraph = fmt.Errorf("%w: subgraph is not constructed", ErrUsage)
	// ErrScheduleRunning is raised when scheduling a graph that is still running.
	ErrScheduleRunning = fmt.Errorf("%w: graph is already running", ErrUsage)
	// ErrRepeatingSubgraph is raised when a repeating graph is used as a subgraph.
	ErrRepeatingSubgraph = fmt.Errorf("%w: subgraph must not repeat", ErrUsage)
)

// UsageError is the panic value of a usage fault.
type UsageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return fmt.Sprintf("flow: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying sentinel so errors.Is works on recovered values.
func (e *UsageError) Unwrap() error {
	return e.Err
}

// Fault panics with a UsageError for op.
func Fault(op string, err error) {
	panic(&UsageError{Op: op, Err: err})
}
