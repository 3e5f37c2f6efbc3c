package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Kube-Engine/Flow/internal/builder"
	"github.com/Kube-Engine/Flow/internal/config"
	"github.com/Kube-Engine/Flow/internal/ctxlog"
	flowhcl "github.com/Kube-Engine/Flow/internal/hcl"
	"github.com/Kube-Engine/Flow/internal/metrics"
	"github.com/Kube-Engine/Flow/internal/registry"
	"github.com/Kube-Engine/Flow/internal/scheduler"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	registry *registry.Registry
	model    *config.Model
	plan     *builder.Plan
	sched    scheduler.Config

	metricsReg *prometheus.Registry
	collector  *metrics.Collector
}

// NewApp loads the definition files, registers modules and builds every
// graph. A nil loader selects one from the file extensions under
// cfg.Paths; no modules selects CoreModules.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logOut := cfg.LogOutput
	if logOut == nil {
		logOut = outW
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if loader == nil {
		var err error
		if loader, err = LoaderFor(cfg.Paths); err != nil {
			return nil, err
		}
	}
	model, err := loader.Load(ctx, cfg.Paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded and translated into unified model.", "graphs", len(model.Graphs))

	if len(modules) == 0 {
		modules = CoreModules()
	}
	reg := registry.New(modules...)
	if err := reg.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid handler registry: %w", err)
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "handlers", reg.Names())

	plan, err := builder.New(reg, flowhcl.NewConverter()).Build(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to build graphs: %w", err)
	}

	sched := schedulerConfig(model.Scheduler, cfg.Scheduler)
	if err := sched.Validate(); err != nil {
		plan.Release()
		return nil, err
	}

	metricsReg := prometheus.NewRegistry()
	collector, err := metrics.New(metricsReg)
	if err != nil {
		plan.Release()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return &App{
		outW:       outW,
		logger:     logger,
		cfg:        cfg,
		registry:   reg,
		model:      model,
		plan:       plan,
		sched:      sched,
		metricsReg: metricsReg,
		collector:  collector,
	}, nil
}

// schedulerConfig layers non-zero overrides on top of the file settings.
func schedulerConfig(file *config.SchedulerSettings, override scheduler.Config) scheduler.Config {
	var cfg scheduler.Config
	if file != nil {
		cfg = scheduler.Config{
			Workers:                   file.Workers,
			TaskQueueCapacity:         file.TaskQueueCapacity,
			NotificationQueueCapacity: file.NotificationQueueCapacity,
		}
	}
	if override.Workers > 0 {
		cfg.Workers = override.Workers
	}
	if override.TaskQueueCapacity > 0 {
		cfg.TaskQueueCapacity = override.TaskQueueCapacity
	}
	if override.NotificationQueueCapacity > 0 {
		cfg.NotificationQueueCapacity = override.NotificationQueueCapacity
	}
	return cfg
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Plan returns the built graphs.
func (a *App) Plan() *builder.Plan {
	return a.plan
}

// Metrics returns the Prometheus registry the scheduler reports to.
func (a *App) Metrics() *prometheus.Registry {
	return a.metricsReg
}

// Describe writes one line per graph to w.
func (a *App) Describe(w io.Writer) error {
	for _, e := range a.plan.Entries() {
		mode := fmt.Sprintf("runs=%d", a.runCount(e))
		if e.Def.Repeat {
			mode = "repeat"
		}
		if e.Nested {
			mode = "subgraph"
		}
		if _, err := fmt.Fprintf(w, "graph %s: %d tasks, %s (%s)\n", e.Def.Name, e.Graph.Size(), mode, e.Def.Source); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) runCount(e *builder.Entry) int {
	if a.cfg.Runs > 0 {
		return a.cfg.Runs
	}
	return e.Def.RunCount()
}
