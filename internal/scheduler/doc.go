// Package scheduler executes graphs on a pool of work-stealing workers.
//
// # Why Scheduler Exists
//
// A graph only describes what may run and in which order. The scheduler
// owns the goroutines that run it: one Worker per slot, each draining a
// bounded local queue and stealing from its peers when that queue is
// empty. Nodes made ready by a worker are pushed to that same worker's
// queue, so a chain of dependent nodes tends to stay on one goroutine.
//
// # How It Works
//
//  1. Schedule marks the graph running and spreads its sources over the
//     workers round-robin.
//  2. A worker executes a node according to its kind, then joins each
//     fired successor. The predecessor completing the last incoming edge
//     queues the successor.
//  3. The node's completion callback, if any, goes to the notification
//     queue before the node is credited to its graph.
//  4. The credit completing the graph either reschedules it (repeat) or
//     clears its running flag, which releases Graph.Wait.
//
// # Notifications
//
// Callbacks never run on workers. The goroutine that owns the graph calls
// ProcessNotifications to run them, typically right after Graph.Wait.
// Fault handlers are delivered the same way.
//
// # Faults
//
// A panic or error from a node's work is recovered at the node boundary and
// reported as a Fault. The node fires nothing and is not credited, so its
// graph never completes on its own; use Graph.WaitContext to bound the wait.
package scheduler
