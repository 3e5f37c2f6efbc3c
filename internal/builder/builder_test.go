package builder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kube-Engine/Flow/internal/config"
	"github.com/Kube-Engine/Flow/internal/ctxlog"
	"github.com/Kube-Engine/Flow/internal/graph"
	flowhcl "github.com/Kube-Engine/Flow/internal/hcl"
	"github.com/Kube-Engine/Flow/internal/registry"
	"github.com/Kube-Engine/Flow/internal/scheduler"
)

// recorder is a test module that appends the `value` argument of every
// call.
type recorder struct {
	mu     sync.Mutex
	values []string
}

type recordInput struct {
	Value string `flow:"value"`
}

func (r *recorder) Register(reg *registry.Registry) {
	reg.Register("record", registry.Typed(func(_ context.Context, in *recordInput) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.values = append(r.values, in.Value)
		return nil
	}))
	reg.Register("broken", registry.Typed(func(_ context.Context, in *recordInput) error {
		return errors.New("broken " + in.Value)
	}))
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.values
	r.values = nil
	return out
}

func expr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	return e
}

func tmpl(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseTemplate([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	return e
}

func record(t *testing.T, name, value string, after ...string) *config.TaskDef {
	return &config.TaskDef{
		Name:      name,
		Handler:   "record",
		Arguments: map[string]hcl.Expression{"value": tmpl(t, value)},
		After:     after,
	}
}

func newBuilder(rec *recorder) *Builder {
	return New(registry.New(rec), flowhcl.NewConverter())
}

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(scheduler.Config{Workers: 2}, scheduler.WithLogger(ctxlog.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func runOnce(t *testing.T, s *scheduler.Scheduler, g *graph.Graph) {
	t.Helper()
	s.Schedule(g)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.WaitContext(ctx))
	s.ProcessNotifications()
}

func TestBuild_KindsAndEdges(t *testing.T) {
	rec := &recorder{}
	model := &config.Model{Graphs: []*config.GraphDef{
		{Name: "inner", Tasks: []*config.TaskDef{{Name: "only"}}},
		{Name: "main", Tasks: []*config.TaskDef{
			record(t, "a", "a"),
			{Name: "pick", Select: expr(t, "0"), After: []string{"a"}},
			{Name: "left", Graph: "inner", After: []string{"pick"}},
			{Name: "right", After: []string{"pick"}},
			{Name: "check", Condition: expr(t, "true"), After: []string{"a"}},
			{Name: "no", After: []string{"check"}},
			{Name: "yes", After: []string{"check"}},
			{Name: "dyn", Handler: "record", Argument: expr(t, "1"), After: []string{"a"},
				Arguments: map[string]hcl.Expression{"value": tmpl(t, "${argument}")}},
		}},
	}}

	p, err := newBuilder(rec).Build(context.Background(), model)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	main, ok := p.Lookup("main")
	require.True(t, ok)
	assert.Equal(t, 8, main.Graph.Size())
	assert.Equal(t, 9, p.NodeCount())
	assert.Same(t, p.Arena(), p.Arena())

	kinds := map[string]graph.Kind{
		"a":     graph.KindStatic,
		"pick":  graph.KindSwitch,
		"left":  graph.KindGraph,
		"right": graph.KindStatic,
		"check": graph.KindCondition,
		"dyn":   graph.KindDynamic,
	}
	for name, want := range kinds {
		task, ok := main.Graph.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, want, task.Kind(), name)
	}

	pick, _ := main.Graph.Lookup("pick")
	succ := pick.Successors()
	require.Len(t, succ, 2)
	assert.Equal(t, "left", succ[0].Name())
	assert.Equal(t, "right", succ[1].Name())

	inner, _ := p.Lookup("inner")
	assert.True(t, inner.Nested)
	roots := p.Roots()
	require.Len(t, roots, 1)
	assert.Equal(t, "main", roots[0].Def.Name)
}

func TestBuild_RunsHandlersWithRunVariable(t *testing.T) {
	rec := &recorder{}
	model := &config.Model{Graphs: []*config.GraphDef{{Name: "seq", Tasks: []*config.TaskDef{
		record(t, "a", "a${run}"),
		record(t, "b", "b${run}", "a"),
		record(t, "c", "${graph}.${task}", "b"),
	}}}}

	p, err := newBuilder(rec).Build(context.Background(), model)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	p.Bind(context.Background())

	s := newScheduler(t)
	e, _ := p.Lookup("seq")
	runOnce(t, s, e.Graph)
	runOnce(t, s, e.Graph)
	assert.Equal(t, []string{"a0", "b0", "seq.c", "a1", "b1", "seq.c"}, rec.take())
}

func TestBuild_SelectorsFollowRun(t *testing.T) {
	rec := &recorder{}
	model := &config.Model{Graphs: []*config.GraphDef{{Name: "branch", Tasks: []*config.TaskDef{
		{Name: "pick", Select: expr(t, "run % 2")},
		record(t, "even", "even", "pick"),
		record(t, "odd", "odd", "pick"),
		{Name: "check", Condition: expr(t, "run == 0")},
		record(t, "later", "later", "check"),
		record(t, "first", "first", "check"),
	}}}}

	p, err := newBuilder(rec).Build(context.Background(), model)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	s := newScheduler(t)
	e, _ := p.Lookup("branch")

	runOnce(t, s, e.Graph)
	assert.ElementsMatch(t, []string{"even", "first"}, rec.take())
	runOnce(t, s, e.Graph)
	assert.ElementsMatch(t, []string{"odd", "later"}, rec.take())
}

func TestBuild_DynamicArgument(t *testing.T) {
	rec := &recorder{}
	model := &config.Model{Graphs: []*config.GraphDef{{Name: "dyn", Tasks: []*config.TaskDef{
		{
			Name:      "d",
			Handler:   "record",
			Argument:  expr(t, "run * 10"),
			Arguments: map[string]hcl.Expression{"value": tmpl(t, "v=${argument}")},
		},
	}}}}

	p, err := newBuilder(rec).Build(context.Background(), model)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	s := newScheduler(t)
	e, _ := p.Lookup("dyn")
	runOnce(t, s, e.Graph)
	runOnce(t, s, e.Graph)
	assert.Equal(t, []string{"v=0", "v=10"}, rec.take())
}

func TestBuild_SubgraphRunsBeforeSuccessors(t *testing.T) {
	rec := &recorder{}
	model := &config.Model{Graphs: []*config.GraphDef{
		{Name: "outer", Tasks: []*config.TaskDef{
			record(t, "a", "a"),
			{Name: "nested", Graph: "inner", After: []string{"a"}},
			record(t, "b", "b", "nested"),
		}},
		{Name: "inner", Tasks: []*config.TaskDef{
			record(t, "i1", "i1"),
			record(t, "i2", "i2", "i1"),
		}},
	}}

	p, err := newBuilder(rec).Build(context.Background(), model)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	s := newScheduler(t)
	e, _ := p.Lookup("outer")
	runOnce(t, s, e.Graph)
	assert.Equal(t, []string{"a", "i1", "i2", "b"}, rec.take())
}

func TestBuild_NotifyRunsOnProcessNotifications(t *testing.T) {
	rec := &recorder{}
	a := record(t, "a", "a${run}")
	a.Notify = "record"
	b := record(t, "b", "b${run}")
	b.Notify = "broken"
	model := &config.Model{Graphs: []*config.GraphDef{{Name: "n", Tasks: []*config.TaskDef{a, b}}}}

	p, err := newBuilder(rec).Build(context.Background(), model)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	s := newScheduler(t)
	e, _ := p.Lookup("n")
	s.Schedule(e.Graph)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Graph.WaitContext(ctx))
	assert.ElementsMatch(t, []string{"a0", "b0"}, rec.take())

	assert.Equal(t, 2, s.ProcessNotifications())
	assert.Equal(t, []string{"a0"}, rec.take())

	err = p.NotifyErrors()
	require.Error(t, err)
	assert.ErrorContains(t, err, "broken b0")
	assert.NoError(t, p.NotifyErrors())
}

func TestBuild_HandlerErrorBecomesFault(t *testing.T) {
	rec := &recorder{}
	var faults []scheduler.Fault
	model := &config.Model{Graphs: []*config.GraphDef{{Name: "f", Tasks: []*config.TaskDef{
		{Name: "bad", Handler: "broken", Arguments: map[string]hcl.Expression{"value": tmpl(t, "x")}},
	}}}}

	p, err := newBuilder(rec).Build(context.Background(), model)
	require.NoError(t, err)

	s, err := scheduler.New(scheduler.Config{Workers: 1},
		scheduler.WithLogger(ctxlog.Discard()),
		scheduler.WithFaultHandler(func(f scheduler.Fault) { faults = append(faults, f) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	e, _ := p.Lookup("f")
	s.Schedule(e.Graph)
	s.Wait()
	s.ProcessNotifications()
	require.Len(t, faults, 1)
	assert.Equal(t, "bad", faults[0].Node)
	assert.ErrorContains(t, faults[0], "broken x")
}

func TestBuild_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		graphs []*config.GraphDef
		want   string
	}{
		{
			name:   "unknown handler",
			graphs: []*config.GraphDef{{Name: "g", Tasks: []*config.TaskDef{{Name: "a", Handler: "nope"}}}},
			want:   `task "a" uses unknown handler "nope"`,
		},
		{
			name:   "unknown notify handler",
			graphs: []*config.GraphDef{{Name: "g", Tasks: []*config.TaskDef{{Name: "a", Notify: "nope"}}}},
			want:   `notifies unknown handler "nope"`,
		},
		{
			name:   "unknown after target",
			graphs: []*config.GraphDef{{Name: "g", Tasks: []*config.TaskDef{{Name: "a", After: []string{"ghost"}}}}},
			want:   `depends on unknown task "ghost"`,
		},
		{
			name:   "self dependency",
			graphs: []*config.GraphDef{{Name: "g", Tasks: []*config.TaskDef{{Name: "a", After: []string{"a"}}}}},
			want:   "depends on itself",
		},
		{
			name:   "duplicate task",
			graphs: []*config.GraphDef{{Name: "g", Tasks: []*config.TaskDef{{Name: "a"}, {Name: "a"}}}},
			want:   `duplicate task "a"`,
		},
		{
			name:   "unknown subgraph",
			graphs: []*config.GraphDef{{Name: "g", Tasks: []*config.TaskDef{{Name: "a", Graph: "missing"}}}},
			want:   `references unknown graph "missing"`,
		},
		{
			name: "repeating subgraph",
			graphs: []*config.GraphDef{
				{Name: "loop", Repeat: true, Tasks: []*config.TaskDef{{Name: "x"}}},
				{Name: "g", Tasks: []*config.TaskDef{{Name: "a", Graph: "loop"}}},
			},
			want: `references repeating graph "loop"`,
		},
		{
			name: "subgraph cycle",
			graphs: []*config.GraphDef{
				{Name: "one", Tasks: []*config.TaskDef{{Name: "a", Graph: "two"}}},
				{Name: "two", Tasks: []*config.TaskDef{{Name: "b", Graph: "one"}}},
			},
			want: "subgraph cycle: one -> two -> one",
		},
		{
			name: "task cycle",
			graphs: []*config.GraphDef{{Name: "g", Tasks: []*config.TaskDef{
				{Name: "a", After: []string{"b"}},
				{Name: "b", After: []string{"a"}},
			}}},
			want: "dependency cycle: a -> b -> a",
		},
		{
			name:   "duplicate graph",
			graphs: []*config.GraphDef{{Name: "g"}, {Name: "g"}},
			want:   `graph "g" defined more than once`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newBuilder(&recorder{}).Build(context.Background(), &config.Model{Graphs: tc.graphs})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidModel)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestBuild_SelectorValidation(t *testing.T) {
	tests := []struct {
		name  string
		tasks func(t *testing.T) []*config.TaskDef
		want  string
	}{
		{
			name: "two kind attributes",
			tasks: func(t *testing.T) []*config.TaskDef {
				return []*config.TaskDef{{Name: "a", Select: expr(t, "0"), Argument: expr(t, "1")}}
			},
			want: "sets select and argument",
		},
		{
			name: "selector without dependents",
			tasks: func(t *testing.T) []*config.TaskDef {
				return []*config.TaskDef{{Name: "a", Select: expr(t, "0")}}
			},
			want: "nothing depends on it",
		},
		{
			name: "condition with one dependent",
			tasks: func(t *testing.T) []*config.TaskDef {
				return []*config.TaskDef{
					{Name: "a", Condition: expr(t, "true")},
					{Name: "b", After: []string{"a"}},
				}
			},
			want: "needs exactly 2 dependents, has 1",
		},
		{
			name: "branch with dependents",
			tasks: func(t *testing.T) []*config.TaskDef {
				return []*config.TaskDef{
					{Name: "a", Select: expr(t, "0")},
					{Name: "b", After: []string{"a"}},
					{Name: "c", After: []string{"b"}},
				}
			},
			want: `branch "b" must depend only on it`,
		},
		{
			name: "depends on dynamic",
			tasks: func(t *testing.T) []*config.TaskDef {
				return []*config.TaskDef{
					{Name: "a", Argument: expr(t, "1")},
					{Name: "b", After: []string{"a"}},
				}
			},
			want: `depends on dynamic task "a"`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			model := &config.Model{Graphs: []*config.GraphDef{{Name: "g", Tasks: tc.tasks(t)}}}
			_, err := newBuilder(&recorder{}).Build(context.Background(), model)
			assert.ErrorIs(t, err, ErrInvalidModel)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}
