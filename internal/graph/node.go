package graph

import (
	"strconv"
	"sync/atomic"
)

// Node is one vertex of a Graph. Nodes are allocated from the graph's Arena
// and addressed by Tasks while building and by pointer while executing.
// Topology fields are written only by the graph's owner before scheduling;
// joined and bypass are the only fields touched concurrently.
type Node struct {
	work     Work
	outgoing []uint32
	incoming int64
	joined   atomic.Int64
	notify   func()
	owner    *data
	bypass   atomic.Bool
	name     string
	argument any
	index    uint32
}

func (n *Node) reset() {
	n.work = nil
	n.outgoing = nil
	n.incoming = 0
	n.joined.Store(0)
	n.notify = nil
	n.owner = nil
	n.bypass.Store(false)
	n.name = ""
	n.argument = nil
	n.index = 0
}

// Work returns the node's work.
func (n *Node) Work() Work { return n.work }

// Kind returns the kind of the node's work.
func (n *Node) Kind() Kind { return n.work.Kind() }

// Name returns the diagnostic name, which may be empty.
func (n *Node) Name() string { return n.name }

// Label returns the name, or a positional label for anonymous nodes.
func (n *Node) Label() string {
	if n.name != "" {
		return n.name
	}
	return "#" + strconv.Itoa(int(n.index))
}

// Index returns the node's position in its graph.
func (n *Node) Index() int { return int(n.index) }

// Bypass reports whether the node's work must be skipped.
func (n *Node) Bypass() bool { return n.bypass.Load() }

// Argument returns the value passed to Dynamic work.
func (n *Node) Argument() any { return n.argument }

// Notification returns the completion callback, or nil.
func (n *Node) Notification() func() { return n.notify }

// OutDegree returns the number of successors.
func (n *Node) OutDegree() int { return len(n.outgoing) }

// Successor returns the i-th successor in edge insertion order.
func (n *Node) Successor(i int) *Node {
	return n.owner.nodes[n.outgoing[i]]
}

// Incoming returns the number of predecessors.
func (n *Node) Incoming() int { return int(n.incoming) }

// Joined returns how many predecessors completed in the current run.
func (n *Node) Joined() int { return int(n.joined.Load()) }

// Graph returns a non-owning handle to the graph that holds the node.
func (n *Node) Graph() *Graph { return &Graph{d: n.owner, borrowed: true} }

// Join records that one predecessor finished. It returns true for exactly
// one caller per run: the one completing the last incoming edge, which
// also resets the counter for the next run.
func (n *Node) Join() bool {
	if n.incoming == 0 {
		return false
	}
	if n.joined.Add(1) != n.incoming {
		return false
	}
	n.joined.Store(0)
	return true
}
