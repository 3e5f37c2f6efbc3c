package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kube-Engine/Flow/internal/ctxlog"
	"github.com/Kube-Engine/Flow/internal/graph"
	"github.com/Kube-Engine/Flow/internal/scheduler"
)

// counterValue sums every sample of the named counter family.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestCollector_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err, "registering the same collectors twice must fail")
}

func TestCollector_RecordsSchedulerEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	s, err := scheduler.New(scheduler.Config{Workers: 2},
		scheduler.WithLogger(ctxlog.Discard()),
		scheduler.WithObserver(c),
	)
	require.NoError(t, err)
	defer s.Close()

	g := graph.New(graph.WithName("metrics"))
	a := g.Emplace(func() bool { return true }, graph.Notify(func() {}))
	a.Precede(g.Emplace(nil), g.Emplace(nil))

	s.Schedule(g)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.WaitContext(ctx))
	s.ProcessNotifications()

	assert.Equal(t, 2.0, counterValue(t, reg, "flow_nodes_executed_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "flow_graph_runs_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "flow_notifications_queued_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "flow_notifications_processed_total"))
	assert.Equal(t, 0.0, counterValue(t, reg, "flow_node_faults_total"))
}

func TestCollector_CountsFaults(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.NodeFaulted("g", "n", assert.AnError)
	c.NodeFaulted("g", "m", assert.AnError)
	c.NodeStolen(1)

	assert.Equal(t, 2.0, counterValue(t, reg, "flow_node_faults_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "flow_nodes_stolen_total"))
}
