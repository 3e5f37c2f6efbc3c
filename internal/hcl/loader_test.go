package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/Kube-Engine/Flow/internal/config"
)

// taskSummary flattens a TaskDef into comparable values.
type taskSummary struct {
	Name      string
	Handler   string
	Graph     string
	After     []string
	Bypass    bool
	Notify    string
	Arguments []string
	Select    bool
	Condition bool
	Argument  bool
}

func summarize(g *config.GraphDef) []taskSummary {
	var out []taskSummary
	for _, t := range g.Tasks {
		s := taskSummary{
			Name:      t.Name,
			Handler:   t.Handler,
			Graph:     t.Graph,
			After:     t.After,
			Bypass:    t.Bypass,
			Notify:    t.Notify,
			Select:    t.Select != nil,
			Condition: t.Condition != nil,
			Argument:  t.Argument != nil,
		}
		for name := range t.Arguments {
			s.Arguments = append(s.Arguments, name)
		}
		out = append(out, s)
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const mainHCL = `
scheduler {
  workers             = 3
  task_queue_capacity = 64
}

graph "main" {
  runs = 2

  task "pick" {
    select = run % 2
  }
  task "even" {
    handler = "print"
    after   = ["pick"]
    notify  = "print"
    arguments {
      message = "even ${run}"
    }
  }
  task "odd" {
    handler = "print"
    after   = ["pick"]
    bypass  = true
    arguments {
      message = "odd"
    }
  }
  task "nested" {
    graph = "inner"
    after = ["even", "odd"]
  }
}
`

const innerHCL = `
graph "inner" {
  task "check" {
    condition = run > 1
  }
  task "emit" {
    handler  = "print"
    argument = run * 10
    after    = ["check"]
    arguments {
      message = "arg ${argument}"
    }
  }
}
`

func TestLoader_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.hcl", mainHCL)
	writeFile(t, dir, "sub/inner.hcl", innerHCL)
	writeFile(t, dir, "README.md", "not a definition")

	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	require.NotNil(t, model.Scheduler)
	assert.Equal(t, config.SchedulerSettings{Workers: 3, TaskQueueCapacity: 64}, *model.Scheduler)
	require.Len(t, model.Graphs, 2)

	main, ok := model.Graph("main")
	require.True(t, ok)
	assert.Equal(t, 2, main.Runs)
	assert.False(t, main.Repeat)

	want := []taskSummary{
		{Name: "pick", Select: true},
		{Name: "even", Handler: "print", After: []string{"pick"}, Notify: "print", Arguments: []string{"message"}},
		{Name: "odd", Handler: "print", After: []string{"pick"}, Bypass: true, Arguments: []string{"message"}},
		{Name: "nested", Graph: "inner", After: []string{"even", "odd"}},
	}
	if diff := cmp.Diff(want, summarize(main)); diff != "" {
		t.Errorf("main graph mismatch (-want +got):\n%s", diff)
	}

	inner, ok := model.Graph("inner")
	require.True(t, ok)
	wantInner := []taskSummary{
		{Name: "check", Condition: true},
		{Name: "emit", Handler: "print", After: []string{"check"}, Argument: true, Arguments: []string{"message"}},
	}
	if diff := cmp.Diff(wantInner, summarize(inner)); diff != "" {
		t.Errorf("inner graph mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_ExpressionsEvaluateWithRun(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.hcl", mainHCL)

	model, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	main, _ := model.Graph("main")
	pick, _ := main.Task("pick")

	val, diags := pick.Select.Value(&hcl.EvalContext{
		Variables: map[string]cty.Value{"run": cty.NumberIntVal(3)},
	})
	require.False(t, diags.HasErrors(), diags.Error())
	assert.True(t, val.RawEquals(cty.NumberIntVal(1)))
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "syntax error",
			files:   map[string]string{"bad.hcl": `graph "x" {`},
			wantErr: "failed to parse HCL file",
		},
		{
			name: "unknown attribute",
			files: map[string]string{"bad.hcl": `
graph "x" {
  task "a" {
    colour = "red"
  }
}
`},
			wantErr: "failed to decode HCL file",
		},
		{
			name: "duplicate graph",
			files: map[string]string{
				"a.hcl": `graph "x" {}`,
				"b.hcl": `graph "x" {}`,
			},
			wantErr: `graph "x" defined in both`,
		},
		{
			name:    "negative runs",
			files:   map[string]string{"bad.hcl": `graph "x" { runs = -1 }`},
			wantErr: "runs must not be negative",
		},
		{
			name:    "no files",
			files:   map[string]string{"notes.txt": "nothing"},
			wantErr: "no .hcl files found",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tc.files {
				writeFile(t, dir, name, content)
			}
			_, err := NewLoader().Load(context.Background(), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
