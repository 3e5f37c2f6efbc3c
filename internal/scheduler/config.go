package scheduler

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/Kube-Engine/Flow/internal/queue"
)

const (
	// DefaultWorkers is used when the number of CPUs cannot be determined.
	DefaultWorkers = 4
	// DefaultTaskQueueCapacity is the per-worker queue capacity.
	DefaultTaskQueueCapacity = 4096
	// DefaultNotificationQueueCapacity is the capacity of the notification queue.
	DefaultNotificationQueueCapacity = 4096
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid scheduler config")

// Config sizes the worker pool and its queues.
type Config struct {
	// Workers is the number of workers. Zero selects AutoWorkers.
	Workers int
	// TaskQueueCapacity bounds each worker's queue. Must be a power of two.
	TaskQueueCapacity int
	// NotificationQueueCapacity bounds the notification queue. Must be a power of two.
	NotificationQueueCapacity int
}

// DefaultConfig returns a Config sized to the machine.
func DefaultConfig() Config {
	return Config{
		Workers:                   AutoWorkers(),
		TaskQueueCapacity:         DefaultTaskQueueCapacity,
		NotificationQueueCapacity: DefaultNotificationQueueCapacity,
	}
}

// AutoWorkers returns the hardware concurrency, or DefaultWorkers when the
// runtime reports none.
func AutoWorkers() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return DefaultWorkers
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = AutoWorkers()
	}
	if c.TaskQueueCapacity == 0 {
		c.TaskQueueCapacity = DefaultTaskQueueCapacity
	}
	if c.NotificationQueueCapacity == 0 {
		c.NotificationQueueCapacity = DefaultNotificationQueueCapacity
	}
	return c
}

// Validate checks the config after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	}
	if err := queue.ValidateCapacity(c.TaskQueueCapacity); err != nil {
		return fmt.Errorf("%w: task queue: %w", ErrInvalidConfig, err)
	}
	if err := queue.ValidateCapacity(c.NotificationQueueCapacity); err != nil {
		return fmt.Errorf("%w: notification queue: %w", ErrInvalidConfig, err)
	}
	return nil
}
