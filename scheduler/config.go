package scheduler

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vinayprograms/schedkit/errors"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultMaintenanceInterval = 60 * time.Second
	DefaultHistoryLimit        = 1000
)

// Config holds the scheduler's tuning knobs, supplied once at
// construction.
type Config struct {
	// MaxRetries is the total number of execution attempts allowed per
	// task. Zero means a single failure is terminal.
	MaxRetries int

	// RetryDelay is the base delay before the first retry. Attempt n
	// waits RetryDelay * 2^(n-1).
	RetryDelay time.Duration

	// ResourceTimeout bounds a single execution attempt. The maintenance
	// sweep force-fails running tasks older than twice this value.
	ResourceTimeout time.Duration

	// MaintenanceInterval is the period of the maintenance sweep.
	// Zero means unset; New substitutes the default (60s).
	MaintenanceInterval time.Duration

	// HistoryLimit caps the completed-id history used for dependency
	// satisfaction checks. Oldest entries are evicted first.
	// Zero means unset; New substitutes the default (1000).
	HistoryLimit int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:          3,
		RetryDelay:          time.Second,
		ResourceTimeout:     time.Minute,
		MaintenanceInterval: DefaultMaintenanceInterval,
		HistoryLimit:        DefaultHistoryLimit,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.InvalidInput("max retries must be >= 0")
	}
	if c.RetryDelay <= 0 {
		return errors.InvalidInput("retry delay must be positive")
	}
	if c.ResourceTimeout <= 0 {
		return errors.InvalidInput("resource timeout must be positive")
	}
	// Zero is rejected rather than accepted here: withDefaults cannot
	// tell an explicit zero from an unset field, so it would silently
	// become the default.
	if c.MaintenanceInterval <= 0 {
		return errors.InvalidInput("maintenance interval must be positive")
	}
	if c.HistoryLimit <= 0 {
		return errors.InvalidInput("history limit must be positive")
	}
	return nil
}

// withDefaults fills zero-valued optional fields. Validated
// configurations pass through unchanged.
func (c Config) withDefaults() Config {
	if c.MaintenanceInterval == 0 {
		c.MaintenanceInterval = DefaultMaintenanceInterval
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	return c
}

// newRetryBackoff builds the per-task backoff policy. RandomizationFactor
// zero and multiplier two reproduce the attempt-indexed sequence
// RetryDelay, 2*RetryDelay, 4*RetryDelay, ... exactly; MaxElapsedTime
// zero means the policy itself never gives up, retry exhaustion is
// decided by the attempt counter.
func newRetryBackoff(cfg Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.RetryDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
