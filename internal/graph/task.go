package graph

// Task is a lightweight handle to a node, used to build topology. A Task is
// only valid while its graph keeps the node; using it after Clear or on a
// zero Task is a usage fault.
type Task struct {
	d          *data
	index      uint32
	generation uint32
}

// TaskOption configures a node at Emplace time.
type TaskOption func(Task)

// Notify sets the completion callback.
func Notify(fn func()) TaskOption {
	return func(t Task) { t.SetNotify(fn) }
}

// Name sets the diagnostic name.
func Name(name string) TaskOption {
	return func(t Task) { t.SetName(name) }
}

// Bypass marks the node as bypassed.
func Bypass(bypass bool) TaskOption {
	return func(t Task) { t.SetBypass(bypass) }
}

// Argument sets the value passed to Dynamic work.
func Argument(arg any) TaskOption {
	return func(t Task) { t.SetArgument(arg) }
}

// Valid reports whether the handle still refers to a live node.
func (t Task) Valid() bool {
	return t.d != nil && t.generation == t.d.generation.Load() && int(t.index) < len(t.d.nodes)
}

func (t Task) node(op string) *Node {
	if !t.Valid() {
		Fault(op, ErrStaleTask)
	}
	return t.d.nodes[t.index]
}

// Node returns the node behind the handle.
func (t Task) Node() *Node {
	return t.node("node")
}

// Index returns the node's position in its graph.
func (t Task) Index() int {
	return int(t.index)
}

// Graph returns a non-owning handle to the graph holding the task.
func (t Task) Graph() *Graph {
	return &Graph{d: t.d, borrowed: true}
}

// Precede adds an edge from t to each of others, in order. Duplicates are
// kept and counted as separate edges.
func (t Task) Precede(others ...Task) Task {
	n := t.node("precede")
	for _, o := range others {
		if o.d != t.d {
			Fault("precede", ErrForeignTask)
		}
		succ := o.node("precede")
		n.outgoing = append(n.outgoing, o.index)
		succ.incoming++
	}
	return t
}

// Succeed adds an edge from each of others to t.
func (t Task) Succeed(others ...Task) Task {
	for _, o := range others {
		o.Precede(t)
	}
	return t
}

// SetWork replaces the node's work.
func (t Task) SetWork(work any) Task {
	n := t.node("set work")
	w, err := NormalizeWork(work)
	if err != nil {
		Fault("set work", err)
	}
	n.work = w
	return t
}

// Kind returns the kind of the node's work.
func (t Task) Kind() Kind {
	return t.node("kind").work.Kind()
}

// SetNotify replaces the completion callback. A nil fn removes it.
func (t Task) SetNotify(fn func()) Task {
	t.node("set notify").notify = fn
	return t
}

// HasNotification reports whether a completion callback is set.
func (t Task) HasNotification() bool {
	return t.node("has notification").notify != nil
}

// SetName sets the diagnostic name, indexing it for Graph.Lookup.
func (t Task) SetName(name string) Task {
	n := t.node("set name")
	if n.name != "" {
		if idx, ok := t.d.byName[n.name]; ok && idx == t.index {
			delete(t.d.byName, n.name)
		}
	}
	n.name = name
	if name != "" {
		t.d.byName[name] = t.index
	}
	return t
}

// Name returns the diagnostic name.
func (t Task) Name() string {
	return t.node("name").name
}

// SetBypass toggles bypass. A bypassed node skips its work but still
// propagates joins to its successors.
func (t Task) SetBypass(bypass bool) Task {
	t.node("set bypass").bypass.Store(bypass)
	return t
}

// Bypass reports whether the node is bypassed.
func (t Task) Bypass() bool {
	return t.node("bypass").bypass.Load()
}

// SetArgument sets the value passed to Dynamic work.
func (t Task) SetArgument(arg any) Task {
	t.node("set argument").argument = arg
	return t
}

// Argument returns the value passed to Dynamic work.
func (t Task) Argument() any {
	return t.node("argument").argument
}

// Successors returns handles to the successors in edge insertion order.
func (t Task) Successors() []Task {
	n := t.node("successors")
	out := make([]Task, len(n.outgoing))
	for i, idx := range n.outgoing {
		out[i] = Task{d: t.d, index: idx, generation: t.generation}
	}
	return out
}

// IncomingCount returns the number of predecessors.
func (t Task) IncomingCount() int {
	return int(t.node("incoming count").incoming)
}

// Joined returns the current join counter.
func (t Task) Joined() int {
	return int(t.node("joined").joined.Load())
}
