package graph

import "sync"

// slabSize is the number of Node slots allocated at once.
const slabSize = 64

// Arena is a bump allocator for Node records. Slots live in fixed-size slabs
// so a node's address never moves while its graph keeps growing. Individual
// frees only zero the slot; once every live slot is freed the arena rewinds
// and reuses its slabs.
//
// An Arena may back several graphs, which is how callers pool node memory
// across graphs that are built and cleared together.
type Arena struct {
	mu    sync.Mutex
	slabs [][]Node
	used  int
	live  int
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) allocate() *Node {
	a.mu.Lock()
	defer a.mu.Unlock()

	slab := a.used / slabSize
	if slab == len(a.slabs) {
		a.slabs = append(a.slabs, make([]Node, slabSize))
	}
	n := &a.slabs[slab][a.used%slabSize]
	a.used++
	a.live++
	return n
}

func (a *Arena) free(nodes []*Node) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, n := range nodes {
		n.reset()
	}
	a.live -= len(nodes)
	if a.live <= 0 {
		a.live = 0
		a.used = 0
	}
}

// Live returns the number of allocated, not yet freed nodes.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live
}

// Slots returns the number of node slots reserved by the arena.
func (a *Arena) Slots() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slabs) * slabSize
}
