// Package metrics exports scheduler events as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kube-Engine/Flow/internal/graph"
	"github.com/Kube-Engine/Flow/internal/scheduler"
)

const namespace = "flow"

// Collector implements scheduler.Observer on top of Prometheus metrics.
type Collector struct {
	executed      *prometheus.CounterVec
	faults        *prometheus.CounterVec
	stolen        prometheus.Counter
	queued        prometheus.Counter
	processed     prometheus.Counter
	graphRuns     *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec
	graphDuration *prometheus.HistogramVec
}

var _ scheduler.Observer = (*Collector)(nil)

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		executed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_executed_total",
			Help:      "Number of nodes executed, by work kind.",
		}, []string{"kind"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_faults_total",
			Help:      "Number of nodes whose work failed.",
		}, []string{"graph"}),
		stolen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_stolen_total",
			Help:      "Number of nodes taken from another worker's queue.",
		}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_queued_total",
			Help:      "Number of callbacks pushed to the notification queue.",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_processed_total",
			Help:      "Number of callbacks run by ProcessNotifications.",
		}),
		graphRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_runs_total",
			Help:      "Number of completed graph runs.",
		}, []string{"graph"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Wall time of node work.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"kind"}),
		graphDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_duration_seconds",
			Help:      "Wall time of a graph run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"graph"}),
	}

	for _, col := range []prometheus.Collector{
		c.executed, c.faults, c.stolen, c.queued, c.processed,
		c.graphRuns, c.nodeDuration, c.graphDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) NodeExecuted(_, _ string, kind graph.Kind, d time.Duration) {
	c.executed.WithLabelValues(kind.String()).Inc()
	c.nodeDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
}

func (c *Collector) NodeFaulted(graphName, _ string, _ error) {
	c.faults.WithLabelValues(graphName).Inc()
}

func (c *Collector) NodeStolen(int) { c.stolen.Inc() }

func (c *Collector) NotificationQueued() { c.queued.Inc() }

func (c *Collector) NotificationProcessed() { c.processed.Inc() }

func (c *Collector) GraphCompleted(graphName string, d time.Duration) {
	c.graphRuns.WithLabelValues(graphName).Inc()
	c.graphDuration.WithLabelValues(graphName).Observe(d.Seconds())
}
