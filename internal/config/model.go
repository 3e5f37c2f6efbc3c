package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// Model is the unified, format-agnostic representation of all loaded
// definition files.
type Model struct {
	Scheduler *SchedulerSettings
	Graphs    []*GraphDef
}

// SchedulerSettings overrides scheduler sizing. Zero fields keep the
// application defaults.
type SchedulerSettings struct {
	Workers                   int
	TaskQueueCapacity         int
	NotificationQueueCapacity int
}

// GraphDef is one `graph` block.
type GraphDef struct {
	Name   string
	Repeat bool
	// Runs is the number of times the application schedules the graph.
	// Zero means once.
	Runs   int
	Tasks  []*TaskDef
	Source string
}

// TaskDef is one `task` block. At most one of Select, Condition, Argument
// and Graph is set; it determines the kind of the resulting node.
type TaskDef struct {
	Name      string
	Handler   string
	Arguments map[string]hcl.Expression
	Select    hcl.Expression
	Condition hcl.Expression
	Argument  hcl.Expression
	Graph     string
	After     []string
	Bypass    bool
	Notify    string
}

// Graph returns the graph definition with the given name.
func (m *Model) Graph(name string) (*GraphDef, bool) {
	for _, g := range m.Graphs {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Merge appends the graphs of other. A graph name defined twice is an
// error; scheduler settings from other override earlier ones.
func (m *Model) Merge(other *Model) error {
	if other == nil {
		return nil
	}
	for _, g := range other.Graphs {
		if existing, ok := m.Graph(g.Name); ok {
			return fmt.Errorf("graph %q defined in both %s and %s", g.Name, existing.Source, g.Source)
		}
		m.Graphs = append(m.Graphs, g)
	}
	if other.Scheduler != nil {
		m.Scheduler = other.Scheduler
	}
	return nil
}

// Task returns the task definition with the given name.
func (g *GraphDef) Task(name string) (*TaskDef, bool) {
	for _, t := range g.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// RunCount returns Runs, treating zero as one.
func (g *GraphDef) RunCount() int {
	if g.Runs <= 0 {
		return 1
	}
	return g.Runs
}
