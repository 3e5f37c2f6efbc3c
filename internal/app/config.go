package app

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Kube-Engine/Flow/internal/scheduler"
)

// DefaultDrainTimeout bounds how long Run waits for in-flight nodes after a
// fault or cancellation before closing the scheduler.
const DefaultDrainTimeout = 5 * time.Second

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Paths are definition files or directories (.hcl, .yaml, .yml).
	Paths []string

	LogFormat string
	LogLevel  string
	// LogOutput receives log records. The app output writer when nil.
	LogOutput io.Writer

	// HealthcheckPort enables the health server when positive.
	HealthcheckPort int

	// Scheduler fields that are non-zero override the scheduler block of the
	// definition files.
	Scheduler scheduler.Config

	// Runs overrides the run count of every non-repeating graph when positive.
	Runs int

	DrainTimeout time.Duration
}

// NewConfig validates cfg and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("at least one definition path is required")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, ok := parseLevel(cfg.LogLevel); !ok {
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck-port %d", cfg.HealthcheckPort)
	}
	if cfg.Runs < 0 {
		return nil, fmt.Errorf("invalid runs %d: must not be negative", cfg.Runs)
	}
	if err := cfg.Scheduler.Validate(); err != nil {
		return nil, err
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	return &cfg, nil
}
