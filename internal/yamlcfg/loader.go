// Package yamlcfg loads graph definitions written in YAML into the same
// format-agnostic model as the HCL loader. Expression-valued fields are
// strings parsed with hclsyntax, so `run` and `argument` work identically in
// both formats.
package yamlcfg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/Kube-Engine/Flow/internal/config"
	"github.com/Kube-Engine/Flow/internal/ctxlog"
	"github.com/Kube-Engine/Flow/internal/fsutil"
	flowhcl "github.com/Kube-Engine/Flow/internal/hcl"
)

// Extensions lists the file extensions handled by the loader.
var Extensions = []string{".yaml", ".yml"}

type document struct {
	Scheduler *schedulerDoc `yaml:"scheduler"`
	Graphs    []*graphDoc   `yaml:"graphs"`
}

type schedulerDoc struct {
	Workers                   int `yaml:"workers"`
	TaskQueueCapacity         int `yaml:"task_queue_capacity"`
	NotificationQueueCapacity int `yaml:"notification_queue_capacity"`
}

type graphDoc struct {
	Name   string     `yaml:"name"`
	Repeat bool       `yaml:"repeat"`
	Runs   int        `yaml:"runs"`
	Tasks  []*taskDoc `yaml:"tasks"`
}

type taskDoc struct {
	Name      string               `yaml:"name"`
	Handler   string               `yaml:"handler"`
	Arguments map[string]yaml.Node `yaml:"arguments"`
	Select    string               `yaml:"select"`
	Condition string               `yaml:"condition"`
	Argument  string               `yaml:"argument"`
	Graph     string               `yaml:"graph"`
	After     []string             `yaml:"after"`
	Bypass    bool                 `yaml:"bypass"`
	Notify    string               `yaml:"notify"`
}

// Loader is the YAML implementation of config.Loader.
type Loader struct{}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new YAML definition loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every YAML file found under paths and merges the result.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(paths, Extensions...)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no YAML files found in %v", paths)
	}

	model := &config.Model{}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		fileModel, err := Parse(data, file)
		if err != nil {
			return nil, err
		}
		if err := model.Merge(fileModel); err != nil {
			return nil, err
		}
	}

	logger.Debug("YAML loading complete.", "files", len(files), "graphs", len(model.Graphs))
	return model, nil
}

// Parse decodes a single YAML document. filename is used in diagnostics.
func Parse(data []byte, filename string) (*config.Model, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML parse error in %s: %w", filename, err)
	}

	model := &config.Model{}
	if s := doc.Scheduler; s != nil {
		model.Scheduler = &config.SchedulerSettings{
			Workers:                   s.Workers,
			TaskQueueCapacity:         s.TaskQueueCapacity,
			NotificationQueueCapacity: s.NotificationQueueCapacity,
		}
	}
	for i, gd := range doc.Graphs {
		if gd.Name == "" {
			return nil, fmt.Errorf("%s: graphs[%d]: missing name", filename, i)
		}
		if gd.Runs < 0 {
			return nil, fmt.Errorf("%s: graph %q: runs must not be negative", filename, gd.Name)
		}
		g := &config.GraphDef{Name: gd.Name, Repeat: gd.Repeat, Runs: gd.Runs, Source: filename}
		for j, td := range gd.Tasks {
			t, err := translateTask(td, filename)
			if err != nil {
				return nil, fmt.Errorf("%s: graph %q: tasks[%d]: %w", filename, gd.Name, j, err)
			}
			g.Tasks = append(g.Tasks, t)
		}
		model.Graphs = append(model.Graphs, g)
	}
	return model, nil
}

func translateTask(td *taskDoc, filename string) (*config.TaskDef, error) {
	if td.Name == "" {
		return nil, errors.New("missing name")
	}
	t := &config.TaskDef{
		Name:    td.Name,
		Handler: td.Handler,
		Graph:   td.Graph,
		After:   td.After,
		Bypass:  td.Bypass,
		Notify:  td.Notify,
	}

	var err error
	if t.Select, err = parseExpression(td.Select, filename, "select"); err != nil {
		return nil, err
	}
	if t.Condition, err = parseExpression(td.Condition, filename, "condition"); err != nil {
		return nil, err
	}
	if t.Argument, err = parseExpression(td.Argument, filename, "argument"); err != nil {
		return nil, err
	}

	if len(td.Arguments) > 0 {
		t.Arguments = make(map[string]hcl.Expression, len(td.Arguments))
		for name, node := range td.Arguments {
			expr, err := nodeExpression(&node, filename)
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", name, err)
			}
			t.Arguments[name] = expr
		}
	}
	return t, nil
}

// parseExpression parses an HCL expression embedded in a YAML string. An
// empty string means the field is absent.
func parseExpression(src, filename, field string) (hcl.Expression, error) {
	if src == "" {
		return nil, nil
	}
	expr, diags := hclsyntax.ParseExpression([]byte(src), filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: %w", field, diags)
	}
	return expr, nil
}

// nodeExpression turns an argument value into an expression. Strings are
// templates so "${run}" interpolates; everything else is a literal.
func nodeExpression(node *yaml.Node, filename string) (hcl.Expression, error) {
	rng := hcl.Range{
		Filename: filename,
		Start:    hcl.Pos{Line: node.Line, Column: node.Column},
		End:      hcl.Pos{Line: node.Line, Column: node.Column},
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		expr, diags := hclsyntax.ParseTemplate([]byte(node.Value), filename, rng.Start)
		if diags.HasErrors() {
			return nil, diags
		}
		return expr, nil
	}
	val, err := nodeValue(node)
	if err != nil {
		return nil, err
	}
	return hcl.StaticExpr(val, rng), nil
}

// nodeValue converts a YAML node into a cty value.
func nodeValue(node *yaml.Node) (cty.Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		return nodeValue(node.Content[0])
	case yaml.AliasNode:
		return nodeValue(node.Alias)
	case yaml.ScalarNode:
		var native any
		if err := node.Decode(&native); err != nil {
			return cty.NilVal, err
		}
		return flowhcl.NewConverter().ToCtyValue(native)
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(node.Content))
		for i, child := range node.Content {
			v, err := nodeValue(child)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = v
		}
		return cty.TupleVal(elems), nil
	case yaml.MappingNode:
		if len(node.Content) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := nodeValue(node.Content[i+1])
			if err != nil {
				return cty.NilVal, err
			}
			attrs[node.Content[i].Value] = v
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported YAML node kind %d", node.Kind)
	}
}
