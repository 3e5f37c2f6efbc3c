package graph

import "fmt"

// Kind identifies which Work variant a node carries.
type Kind int

const (
	// KindStatic is a plain action invoked without arguments.
	KindStatic Kind = iota
	// KindDynamic is an action invoked with the node's argument.
	KindDynamic
	// KindSwitch selects exactly one successor by index.
	KindSwitch
	// KindCondition selects successor 0 on false and 1 on true.
	KindCondition
	// KindGraph runs a nested graph.
	KindGraph
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindDynamic:
		return "dynamic"
	case KindSwitch:
		return "switch"
	case KindCondition:
		return "condition"
	case KindGraph:
		return "graph"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsSelector reports whether the kind fires a single chosen successor.
func (k Kind) IsSelector() bool {
	return k == KindSwitch || k == KindCondition
}

// Work is the sealed sum type of everything a node can execute. Exactly one
// of Static, Dynamic, Switch, Condition or Subgraph.
type Work interface {
	Kind() Kind
	work()
}

// Static is a plain action.
type Static func() error

// Dynamic is an action receiving the argument attached to its node.
type Dynamic func(arg any) error

// Switch returns the index of the successor to fire.
type Switch func() (int, error)

// Condition picks successor 1 when it returns true and successor 0 otherwise.
type Condition func() (bool, error)

// Subgraph schedules Graph and waits for it before firing its own successors.
type Subgraph struct {
	Graph *Graph
}

func (Static) Kind() Kind    { return KindStatic }
func (Dynamic) Kind() Kind   { return KindDynamic }
func (Switch) Kind() Kind    { return KindSwitch }
func (Condition) Kind() Kind { return KindCondition }
func (Subgraph) Kind() Kind  { return KindGraph }

func (Static) work()    {}
func (Dynamic) work()   {}
func (Switch) work()    {}
func (Condition) work() {}
func (Subgraph) work()  {}

// Empty is the work of a node that only propagates joins.
var Empty Static = func() error { return nil }

// NormalizeWork converts one of the supported function shapes into Work.
// A nil value becomes Empty.
func NormalizeWork(w any) (Work, error) {
	switch v := w.(type) {
	case nil:
		return Empty, nil
	case Static:
		if v == nil {
			return Empty, nil
		}
		return v, nil
	case Dynamic:
		if v == nil {
			return nil, fmt.Errorf("%w: nil dynamic work", ErrUnsupportedWork)
		}
		return v, nil
	case Switch:
		if v == nil {
			return nil, fmt.Errorf("%w: nil switch work", ErrUnsupportedWork)
		}
		return v, nil
	case Condition:
		if v == nil {
			return nil, fmt.Errorf("%w: nil condition work", ErrUnsupportedWork)
		}
		return v, nil
	case Subgraph:
		if v.Graph == nil || v.Graph.d == nil {
			return nil, ErrNilGraph
		}
		return v, nil
	case func():
		return Static(func() error { v(); return nil }), nil
	case func() error:
		return Static(v), nil
	case func(any):
		return Dynamic(func(arg any) error { v(arg); return nil }), nil
	case func(any) error:
		return Dynamic(v), nil
	case func() int:
		return Switch(func() (int, error) { return v(), nil }), nil
	case func() (int, error):
		return Switch(v), nil
	case func() bool:
		return Condition(func() (bool, error) { return v(), nil }), nil
	case func() (bool, error):
		return Condition(v), nil
	case *Graph:
		if v == nil {
			return nil, ErrNilGraph
		}
		v.Construct()
		return Subgraph{Graph: v}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedWork, w)
	}
}
