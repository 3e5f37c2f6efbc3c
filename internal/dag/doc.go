// Package dag provides a small, thread-safe directed graph keyed by string
// IDs. Nodes and edges are kept in insertion order so cycle reports are
// deterministic.
package dag
