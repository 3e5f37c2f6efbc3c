package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kube-Engine/Flow/internal/testutil"
)

func TestZeroGraph_IsLazilyConstructed(t *testing.T) {
	var g Graph
	assert.False(t, g.Constructed())
	assert.Equal(t, 0, g.Size())
	assert.Equal(t, uuid.Nil, g.ID())
	assert.False(t, g.Running())
	g.Wait() // not running, returns immediately

	g.Emplace(func() {})
	assert.True(t, g.Constructed())
	assert.Equal(t, 1, g.Size())
	assert.NotEqual(t, uuid.Nil, g.ID())
	assert.Equal(t, 1, g.RefCount())
}

func TestNew_Options(t *testing.T) {
	arena := NewArena()
	g := New(WithName("pipeline"), WithRepeat(true), WithArena(arena))
	assert.Equal(t, "pipeline", g.Name())
	assert.Equal(t, "pipeline", g.Label())
	assert.True(t, g.Repeat())

	g.Emplace(nil)
	assert.Equal(t, 1, arena.Live())
}

func TestEmplace_NormalizesWork(t *testing.T) {
	g := New()
	sub := New()
	sub.Emplace(func() {})

	cases := []struct {
		work any
		kind Kind
	}{
		{nil, KindStatic},
		{func() {}, KindStatic},
		{func() error { return nil }, KindStatic},
		{func(any) {}, KindDynamic},
		{func(any) error { return nil }, KindDynamic},
		{func() int { return 0 }, KindSwitch},
		{func() (int, error) { return 0, nil }, KindSwitch},
		{func() bool { return false }, KindCondition},
		{func() (bool, error) { return false, nil }, KindCondition},
		{sub, KindGraph},
		{Subgraph{Graph: sub}, KindGraph},
	}
	for _, tc := range cases {
		task := g.Emplace(tc.work)
		assert.Equal(t, tc.kind, task.Kind(), "work %T", tc.work)
	}
}

func TestEmplace_UnsupportedWorkFaults(t *testing.T) {
	g := New()
	testutil.RequireUsageFault(t, ErrUnsupportedWork, func() { g.Emplace(42) })
	testutil.RequireUsageFault(t, ErrNilGraph, func() { g.Emplace(Subgraph{}) })
	assert.Equal(t, 0, g.Size())
}

func TestEmplace_Options(t *testing.T) {
	g := New()
	called := false
	task := g.Emplace(func(any) {},
		Name("load"),
		Bypass(true),
		Argument(7),
		Notify(func() { called = true }),
	)

	assert.Equal(t, "load", task.Name())
	assert.True(t, task.Bypass())
	assert.Equal(t, 7, task.Argument())
	require.True(t, task.HasNotification())
	task.Node().Notification()()
	assert.True(t, called)

	found, ok := g.Lookup("load")
	require.True(t, ok)
	assert.Equal(t, task.Index(), found.Index())
}

func TestPrecede_CountsEdgesInOrder(t *testing.T) {
	g := New()
	a, b, c := g.Emplace(nil), g.Emplace(nil), g.Emplace(nil)

	a.Precede(b, c)
	c.Succeed(b)

	assert.Equal(t, 0, a.IncomingCount())
	assert.Equal(t, 1, b.IncomingCount())
	assert.Equal(t, 2, c.IncomingCount())

	succ := a.Successors()
	require.Len(t, succ, 2)
	assert.Equal(t, b.Index(), succ[0].Index())
	assert.Equal(t, c.Index(), succ[1].Index())

	sources := g.Sources()
	require.Len(t, sources, 1)
	assert.Equal(t, a.Index(), sources[0].Index())
}

func TestPrecede_DuplicateEdgesCountTwice(t *testing.T) {
	g := New()
	a, b := g.Emplace(nil), g.Emplace(nil)
	a.Precede(b, b)

	assert.Equal(t, 2, b.IncomingCount())
	assert.Equal(t, 2, a.Node().OutDegree())
}

func TestPrecede_ForeignTaskFaults(t *testing.T) {
	g1, g2 := New(), New()
	a, b := g1.Emplace(nil), g2.Emplace(nil)
	testutil.RequireUsageFault(t, ErrForeignTask, func() { a.Precede(b) })
}

func TestNodeJoin_ReleasesOnLastPredecessorAndResets(t *testing.T) {
	g := New()
	a, b, c := g.Emplace(nil), g.Emplace(nil), g.Emplace(nil)
	c.Succeed(a, b)
	n := c.Node()

	assert.False(t, n.Join())
	assert.Equal(t, 1, c.Joined())
	assert.True(t, n.Join())
	assert.Equal(t, 0, c.Joined(), "counter resets once the node is released")

	assert.False(t, a.Node().Join(), "a source is never released by a join")
}

func TestChildrenJoined_ReportsCompletionOnce(t *testing.T) {
	g := New()
	for range 4 {
		g.Emplace(nil)
	}
	g.Begin()

	assert.False(t, g.ChildJoined())
	assert.False(t, g.ChildrenJoined(2))
	assert.False(t, g.ChildrenJoined(0))
	assert.True(t, g.ChildJoined())
	assert.Equal(t, 4, g.Completed())

	g.Begin()
	assert.Equal(t, 0, g.Completed())
}

func TestWait_RepeatingGraphFaults(t *testing.T) {
	g := New(WithRepeat(true))
	g.Emplace(nil)
	testutil.RequireUsageFault(t, ErrWaitRepeating, g.Wait)
	testutil.RequireUsageFault(t, ErrWaitRepeating, func() { _ = g.WaitContext(context.Background()) })
}

func TestWait_BlocksUntilNotRunning(t *testing.T) {
	g := New()
	g.Emplace(nil)
	require.False(t, g.SetRunning(true))

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned while running")
	case <-time.After(20 * time.Millisecond):
	}

	g.SetRunning(false)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the run finished")
	}
}

func TestWaitContext_Timeout(t *testing.T) {
	g := New()
	g.SetRunning(true)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := g.WaitContext(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClearLinks_KeepsNodes(t *testing.T) {
	g := New()
	a, b := g.Emplace(nil), g.Emplace(nil)
	a.Precede(b)
	b.Node().Join()

	g.ClearLinks()

	assert.Equal(t, 2, g.Size())
	assert.Equal(t, 0, b.IncomingCount())
	assert.Equal(t, 0, b.Joined())
	assert.Empty(t, a.Successors())
	assert.Len(t, g.Sources(), 2)
}

func TestClear_InvalidatesTasksAndRewindsArena(t *testing.T) {
	arena := NewArena()
	g := New(WithArena(arena))
	a := g.Emplace(nil, Name("a"))
	g.Emplace(nil)
	require.Equal(t, 2, arena.Live())

	g.Clear()

	assert.Equal(t, 0, g.Size())
	assert.Equal(t, 0, arena.Live())
	assert.False(t, a.Valid())
	_, ok := g.Lookup("a")
	assert.False(t, ok)
	testutil.RequireUsageFault(t, ErrStaleTask, func() { a.SetName("b") })

	// Cleared graphs are reusable and recycle arena slots.
	slots := arena.Slots()
	g.Emplace(nil)
	assert.Equal(t, slots, arena.Slots())
}

func TestZeroTask_Faults(t *testing.T) {
	var task Task
	assert.False(t, task.Valid())
	testutil.RequireUsageFault(t, ErrStaleTask, func() { task.Kind() })
}

func TestArena_SharedBetweenGraphs(t *testing.T) {
	arena := NewArena()
	g1 := New(WithArena(arena))
	g2 := New(WithArena(arena))
	for range slabSize + 1 {
		g1.Emplace(nil)
	}
	keep := g2.Emplace(nil, Name("keep"))
	assert.Equal(t, 2*slabSize, arena.Slots())

	g1.Clear()
	assert.Equal(t, 1, arena.Live())
	assert.True(t, keep.Valid())
	assert.Equal(t, "keep", keep.Name())
}

func TestShareRelease_RefCounting(t *testing.T) {
	arena := NewArena()
	g := New(WithArena(arena))
	g.Emplace(nil)

	other := g.Share()
	assert.Equal(t, 2, g.RefCount())
	assert.True(t, g.Same(other))

	g.Release()
	assert.False(t, g.Constructed())
	assert.Equal(t, 1, other.RefCount())
	assert.Equal(t, 1, other.Size())

	other.Release()
	assert.Equal(t, 0, arena.Live())
}

func TestRelease_RunningGraphFaults(t *testing.T) {
	g := New()
	g.Emplace(nil)
	g.SetRunning(true)

	testutil.RequireUsageFault(t, ErrReleaseRunning, g.Release)
	assert.Equal(t, 1, g.RefCount(), "a failed release keeps the reference")
}

func TestRelease_BorrowedHandleFaults(t *testing.T) {
	g := New()
	task := g.Emplace(nil)

	testutil.RequireUsageFault(t, ErrReleaseBorrowed, task.Graph().Release)
	testutil.RequireUsageFault(t, ErrReleaseBorrowed, task.Node().Graph().Release)
	assert.Equal(t, 1, g.RefCount())
	assert.True(t, task.Graph().Same(g))
}

func TestRelease_CopiedHandleCannotOverRelease(t *testing.T) {
	g := New()
	g.Emplace(nil)
	copied := *g

	g.Release()
	testutil.RequireUsageFault(t, ErrReleaseReleased, copied.Release)
	assert.Equal(t, 0, copied.RefCount())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "switch", KindSwitch.String())
	assert.True(t, KindCondition.IsSelector())
	assert.False(t, KindGraph.IsSelector())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
