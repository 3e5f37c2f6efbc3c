package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_Merge(t *testing.T) {
	m := &Model{Graphs: []*GraphDef{{Name: "a", Source: "one.hcl"}}}

	err := m.Merge(&Model{
		Scheduler: &SchedulerSettings{Workers: 2},
		Graphs:    []*GraphDef{{Name: "b", Source: "two.hcl"}},
	})
	require.NoError(t, err)
	assert.Len(t, m.Graphs, 2)
	assert.Equal(t, 2, m.Scheduler.Workers)

	err = m.Merge(&Model{Graphs: []*GraphDef{{Name: "a", Source: "three.hcl"}}})
	assert.ErrorContains(t, err, `graph "a" defined in both one.hcl and three.hcl`)
	assert.NoError(t, m.Merge(nil))
}

func TestGraphDef_Lookup(t *testing.T) {
	g := &GraphDef{Tasks: []*TaskDef{{Name: "x"}, {Name: "y"}}}
	task, ok := g.Task("y")
	require.True(t, ok)
	assert.Equal(t, "y", task.Name)
	_, ok = g.Task("z")
	assert.False(t, ok)

	assert.Equal(t, 1, g.RunCount())
	g.Runs = 3
	assert.Equal(t, 3, g.RunCount())

	m := &Model{Graphs: []*GraphDef{g}}
	_, ok = m.Graph("")
	assert.True(t, ok)
}
