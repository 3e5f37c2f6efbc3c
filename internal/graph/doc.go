// Package graph holds the data model of the engine: nodes, the tasks that
// address them while building, and the graphs that own them.
//
// # Why Graph Package Exists
//
// Building a graph and running it are separate concerns. This package owns
// topology and per-run counters; the scheduler package owns workers and
// queues and only reads topology through *Node accessors. Keeping the
// counters here means the join and completion invariants live next to the
// fields they protect.
//
// # Lifecycle
//
//  1. **Construction:** New, or the zero Graph constructed lazily by Emplace.
//  2. **Population:** Emplace adds nodes; Task.Precede and Task.Succeed add edges.
//  3. **Execution:** a scheduler calls Begin, dispatches Sources, and credits
//     finished nodes with ChildrenJoined until it reports completion.
//  4. **Disposal:** Clear frees the nodes back to the Arena; Release drops an
//     owning reference and clears on the last one.
//
// # Work
//
// Every node carries exactly one Work variant:
//
//	Static     func() error           fires every successor
//	Dynamic    func(arg any) error    fires nothing, receives the node argument
//	Switch     func() (int, error)    fires the successor at the returned index
//	Condition  func() (bool, error)   fires successor 1 on true, 0 on false
//	Subgraph   {Graph *Graph}         runs a nested graph, then fires every successor
//
// NormalizeWork accepts plain function shapes as well, so callers rarely
// name the variants.
//
// # Counting
//
// A node with N predecessors becomes ready when the N-th predecessor calls
// Join; that caller also resets the counter so the graph can run again.
// A run is complete when the credited total reaches Size. Selectors credit
// one unit per outgoing edge, which stands in for the branches they skipped,
// so a graph whose selectors skip whole branches still completes.
//
// # Thread-Safety
//
// Topology is owned by the goroutine that builds the graph and must not be
// mutated while it runs. Counters and flags touched by workers are atomic.
//
// # Usage Faults
//
// Violations of the calling contract panic with *UsageError wrapping one of
// the Err* sentinels. Recover and test with errors.Is(err, ErrUsage).
package graph
