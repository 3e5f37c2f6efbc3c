package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Kube-Engine/Flow/internal/app"
	"github.com/Kube-Engine/Flow/internal/scheduler"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: 2, Message: err.Error()}
}

// options collects every flag shared by the subcommands.
type options struct {
	logFormat         string
	logLevel          string
	logOutput         io.Writer
	workers           int
	taskQueue         int
	notificationQueue int
	healthcheckPort   int
	runs              int
}

func (o *options) config(paths []string) (*app.Config, error) {
	cfg, err := app.NewConfig(app.Config{
		Paths:           paths,
		LogFormat:       strings.ToLower(o.logFormat),
		LogLevel:        strings.ToLower(o.logLevel),
		LogOutput:       o.logOutput,
		HealthcheckPort: o.healthcheckPort,
		Runs:            o.runs,
		Scheduler: scheduler.Config{
			Workers:                   o.workers,
			TaskQueueCapacity:         o.taskQueue,
			NotificationQueueCapacity: o.notificationQueue,
		},
	})
	if err != nil {
		return nil, usageError(err)
	}
	slog.Debug("CLI parameter validation complete.", "paths", paths)
	return cfg, nil
}

// NewRootCmd creates the root command. Command output goes to out, logs to
// logOutput.
func NewRootCmd(out, logOutput io.Writer) *cobra.Command {
	opts := &options{logOutput: logOutput}

	root := &cobra.Command{
		Use:   "flow",
		Short: "Flow - a concurrent task-graph runner.",
		Long: `Flow executes task graphs described in HCL or YAML files on a pool of
work-stealing workers.

Examples:
  # Run every graph found in a directory
  flow run ./graphs

  # Check definitions without running them
  flow validate graph.hcl`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	root.PersistentFlags().IntVar(&opts.workers, "workers", 0, "Number of workers. 0 uses the definition file or one per CPU.")
	root.PersistentFlags().IntVar(&opts.taskQueue, "task-queue", 0, "Per-worker task queue capacity, a power of two.")
	root.PersistentFlags().IntVar(&opts.notificationQueue, "notification-queue", 0, "Notification queue capacity, a power of two.")

	root.AddCommand(newRunCmd(opts), newValidateCmd(opts))
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <path>...",
		Short: "Run every graph found under the given paths.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(args)
			if err != nil {
				return err
			}
			a, err := app.NewApp(cmd.OutOrStdout(), cfg, nil)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&opts.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	cmd.Flags().IntVar(&opts.runs, "runs", 0, "Override the run count of every non-repeating graph.")
	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>...",
		Short: "Load and build every graph without running it.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(args)
			if err != nil {
				return err
			}
			a, err := app.NewApp(cmd.OutOrStdout(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Plan().Release()
			if err := a.Describe(cmd.OutOrStdout()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Definitions are valid.")
			return err
		},
	}
}

// ExitCode maps an error returned by the root command to a process exit
// code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
