package scheduler

import (
	"time"

	"github.com/Kube-Engine/Flow/internal/graph"
)

// Observer receives execution events. Hooks are called on worker goroutines
// and must not block.
type Observer interface {
	NodeExecuted(graph, node string, kind graph.Kind, d time.Duration)
	NodeFaulted(graph, node string, err error)
	NodeStolen(worker int)
	NotificationQueued()
	NotificationProcessed()
	GraphCompleted(graph string, d time.Duration)
}

// NopObserver ignores every event. Embed it to implement a subset of hooks.
type NopObserver struct{}

func (NopObserver) NodeExecuted(string, string, graph.Kind, time.Duration) {}
func (NopObserver) NodeFaulted(string, string, error)                      {}
func (NopObserver) NodeStolen(int)                                         {}
func (NopObserver) NotificationQueued()                                    {}
func (NopObserver) NotificationProcessed()                                 {}
func (NopObserver) GraphCompleted(string, time.Duration)                   {}
