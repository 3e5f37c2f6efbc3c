package graph

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// data is the state shared by every handle of one graph.
type data struct {
	id         uuid.UUID
	name       string
	arena      *Arena
	nodes      []*Node
	byName     map[string]uint32
	generation atomic.Uint32
	refs       atomic.Int32
	running    atomic.Bool
	repeat     atomic.Bool
	completed  atomic.Int64
	startedAt  atomic.Int64
	runs       atomic.Uint64
}

// Graph is a handle to a set of nodes and the edges between them. The zero
// value is usable: the shared state is created lazily on first mutation.
//
// Copying a Graph value yields a second, non-owning reference to the same
// nodes. Owning references are produced by New and Share and dropped by
// Release. Handles returned by Node.Graph and Task.Graph are borrowed and
// cannot be released.
type Graph struct {
	d        *data
	borrowed bool
}

// Option configures a graph created by New.
type Option func(*data)

// WithArena makes the graph allocate its nodes from a.
func WithArena(a *Arena) Option {
	return func(d *data) {
		if a != nil {
			d.arena = a
		}
	}
}

// WithName sets the diagnostic name of the graph.
func WithName(name string) Option {
	return func(d *data) { d.name = name }
}

// WithRepeat makes the graph reschedule itself after every completed run.
func WithRepeat(repeat bool) Option {
	return func(d *data) { d.repeat.Store(repeat) }
}

// New creates a constructed graph holding a single owning reference.
func New(opts ...Option) *Graph {
	d := newData()
	for _, opt := range opts {
		opt(d)
	}
	return &Graph{d: d}
}

func newData() *data {
	d := &data{
		id:     uuid.New(),
		arena:  NewArena(),
		byName: make(map[string]uint32),
	}
	d.refs.Store(1)
	return d
}

// Construct creates the shared state if the graph has none yet.
func (g *Graph) Construct() {
	if g.d == nil {
		g.d = newData()
	}
}

// Constructed reports whether the graph has shared state.
func (g *Graph) Constructed() bool {
	return g.d != nil
}

// Emplace adds a node carrying work and returns its task handle. work is
// anything NormalizeWork accepts; an unsupported value is a usage fault.
func (g *Graph) Emplace(work any, opts ...TaskOption) Task {
	w, err := NormalizeWork(work)
	if err != nil {
		Fault("emplace", err)
	}
	g.Construct()
	d := g.d

	n := d.arena.allocate()
	n.work = w
	n.owner = d
	n.index = uint32(len(d.nodes))
	d.nodes = append(d.nodes, n)

	t := Task{d: d, index: n.index, generation: d.generation.Load()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Task returns the handle of the node at index.
func (g *Graph) Task(index int) (Task, bool) {
	if g.d == nil || index < 0 || index >= len(g.d.nodes) {
		return Task{}, false
	}
	return Task{d: g.d, index: uint32(index), generation: g.d.generation.Load()}, true
}

// Lookup returns the handle of the node with the given name.
func (g *Graph) Lookup(name string) (Task, bool) {
	if g.d == nil {
		return Task{}, false
	}
	idx, ok := g.d.byName[name]
	if !ok {
		return Task{}, false
	}
	return g.Task(int(idx))
}

// Tasks returns a handle for every node in insertion order.
func (g *Graph) Tasks() []Task {
	if g.d == nil {
		return nil
	}
	out := make([]Task, len(g.d.nodes))
	for i := range g.d.nodes {
		out[i] = Task{d: g.d, index: uint32(i), generation: g.d.generation.Load()}
	}
	return out
}

// Each calls fn for every node in insertion order.
func (g *Graph) Each(fn func(*Node)) {
	if g.d == nil {
		return
	}
	for _, n := range g.d.nodes {
		fn(n)
	}
}

// Sources returns the nodes without predecessors. These are the nodes a
// scheduler dispatches when a run begins.
func (g *Graph) Sources() []*Node {
	if g.d == nil {
		return nil
	}
	var out []*Node
	for _, n := range g.d.nodes {
		if n.incoming == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	if g.d == nil {
		return 0
	}
	return len(g.d.nodes)
}

// ID returns the unique identifier assigned when the graph was constructed.
func (g *Graph) ID() uuid.UUID {
	if g.d == nil {
		return uuid.Nil
	}
	return g.d.id
}

// Name returns the diagnostic name of the graph.
func (g *Graph) Name() string {
	if g.d == nil {
		return ""
	}
	return g.d.name
}

// SetName sets the diagnostic name of the graph.
func (g *Graph) SetName(name string) {
	g.Construct()
	g.d.name = name
}

// Label returns the name, or the identifier for anonymous graphs.
func (g *Graph) Label() string {
	if name := g.Name(); name != "" {
		return name
	}
	return g.ID().String()
}

// Same reports whether both handles reference the same graph.
func (g *Graph) Same(other *Graph) bool {
	return other != nil && g.d == other.d
}

// Running reports whether a run is in flight.
func (g *Graph) Running() bool {
	return g.d != nil && g.d.running.Load()
}

// SetRunning flips the running flag and returns the previous value.
func (g *Graph) SetRunning(running bool) bool {
	g.Construct()
	return g.d.running.Swap(running)
}

// Repeat reports whether the graph reschedules itself on completion.
func (g *Graph) Repeat() bool {
	return g.d != nil && g.d.repeat.Load()
}

// SetRepeat changes the repeat flag. Clearing it on a running graph makes
// the current run the last one.
func (g *Graph) SetRepeat(repeat bool) {
	g.Construct()
	g.d.repeat.Store(repeat)
}

// Begin resets per-run counters. Schedulers call it right before
// dispatching the source nodes.
func (g *Graph) Begin() {
	g.Construct()
	g.d.completed.Store(0)
	g.d.startedAt.Store(time.Now().UnixNano())
}

// Elapsed returns the time since the current run began.
func (g *Graph) Elapsed() time.Duration {
	if g.d == nil || g.d.startedAt.Load() == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - g.d.startedAt.Load())
}

// Finish counts one completed run.
func (g *Graph) Finish() uint64 {
	g.Construct()
	return g.d.runs.Add(1)
}

// Runs returns the number of runs completed so far.
func (g *Graph) Runs() uint64 {
	if g.d == nil {
		return 0
	}
	return g.d.runs.Load()
}

// Completed returns how many nodes were credited in the current run.
func (g *Graph) Completed() int {
	if g.d == nil {
		return 0
	}
	return int(g.d.completed.Load())
}

// ChildJoined credits one finished node. See ChildrenJoined.
func (g *Graph) ChildJoined() bool {
	return g.ChildrenJoined(1)
}

// ChildrenJoined credits count finished nodes and reports whether the run
// is complete. Exactly one caller per run observes true.
func (g *Graph) ChildrenJoined(count int) bool {
	if count <= 0 {
		return false
	}
	return g.d.completed.Add(int64(count)) == int64(len(g.d.nodes))
}

// Wait blocks until the current run finishes by yielding the processor.
// It returns immediately if the graph is not running. Waiting on a
// repeating graph is a usage fault.
func (g *Graph) Wait() {
	if g.Repeat() {
		Fault("wait", ErrWaitRepeating)
	}
	for g.Running() {
		runtime.Gosched()
	}
}

// WaitContext is Wait bounded by ctx.
func (g *Graph) WaitContext(ctx context.Context) error {
	if g.Repeat() {
		Fault("wait", ErrWaitRepeating)
	}
	for g.Running() {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

// ClearLinks removes every edge and resets every join counter. Nodes and
// their work are kept.
func (g *Graph) ClearLinks() {
	if g.d == nil {
		return
	}
	for _, n := range g.d.nodes {
		n.outgoing = n.outgoing[:0]
		n.incoming = 0
		n.joined.Store(0)
	}
}

// Clear waits for an in-flight run and then frees every node. Task handles
// obtained before Clear become stale.
func (g *Graph) Clear() {
	if g.d == nil {
		return
	}
	if g.Running() {
		g.Wait()
	}
	d := g.d
	d.arena.free(d.nodes)
	d.nodes = nil
	clear(d.byName)
	d.completed.Store(0)
	d.generation.Add(1)
}

// Share returns a new owning reference to the same graph.
func (g *Graph) Share() *Graph {
	g.Construct()
	g.d.refs.Add(1)
	return &Graph{d: g.d}
}

// RefCount returns the number of owning references.
func (g *Graph) RefCount() int {
	if g.d == nil {
		return 0
	}
	return int(g.d.refs.Load())
}

// Release drops this owning reference and detaches the handle. The last
// release frees the nodes. Releasing the last reference of a running graph,
// releasing a borrowed handle, or releasing more references than were taken
// is a usage fault.
func (g *Graph) Release() {
	if g.d == nil {
		return
	}
	if g.borrowed {
		Fault("release", ErrReleaseBorrowed)
	}
	d := g.d
	refs := d.refs.Add(-1)
	if refs < 0 {
		d.refs.Add(1)
		Fault("release", ErrReleaseReleased)
	}
	if refs == 0 {
		if d.running.Load() {
			d.refs.Add(1)
			Fault("release", ErrReleaseRunning)
		}
		g.Clear()
	}
	g.d = nil
}
