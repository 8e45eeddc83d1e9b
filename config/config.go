// Package config loads scheduler deployment configuration from TOML.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/schedkit/bus"
	"github.com/vinayprograms/schedkit/errors"
	"github.com/vinayprograms/schedkit/logging"
	"github.com/vinayprograms/schedkit/scheduler"
)

// Config is the root of the TOML configuration file.
type Config struct {
	Scheduler SchedulerConfig `toml:"scheduler"`
	Bus       BusConfig       `toml:"bus"`
	Logging   LoggingConfig   `toml:"logging"`
}

// SchedulerConfig carries the scheduler tuning knobs. Durations are
// expressed in milliseconds for TOML friendliness.
type SchedulerConfig struct {
	MaxRetries            int `toml:"max_retries"`
	RetryDelayMs          int `toml:"retry_delay_ms"`
	ResourceTimeoutMs     int `toml:"resource_timeout_ms"`
	MaintenanceIntervalMs int `toml:"maintenance_interval_ms"`
	HistoryLimit          int `toml:"history_limit"`
}

// BusConfig selects and configures the message bus backend.
type BusConfig struct {
	// Backend is "memory" or "nats".
	Backend    string     `toml:"backend"`
	BufferSize int        `toml:"buffer_size"`
	NATS       NATSConfig `toml:"nats"`
}

// NATSConfig configures the NATS backend.
type NATSConfig struct {
	URL              string `toml:"url"`
	Name             string `toml:"name"`
	Token            string `toml:"token"`
	User             string `toml:"user"`
	Password         string `toml:"password"`
	ReconnectWaitMs  int    `toml:"reconnect_wait_ms"`
	MaxReconnects    int    `toml:"max_reconnects"`
	ConnectTimeoutMs int    `toml:"connect_timeout_ms"`
}

// LoggingConfig configures the diagnostic logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level"`
}

// Backend names accepted by BusConfig.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	sched := scheduler.DefaultConfig()
	natsDefaults := bus.DefaultNATSConfig()
	return Config{
		Scheduler: SchedulerConfig{
			MaxRetries:            sched.MaxRetries,
			RetryDelayMs:          int(sched.RetryDelay / time.Millisecond),
			ResourceTimeoutMs:     int(sched.ResourceTimeout / time.Millisecond),
			MaintenanceIntervalMs: int(sched.MaintenanceInterval / time.Millisecond),
			HistoryLimit:          sched.HistoryLimit,
		},
		Bus: BusConfig{
			Backend:    BackendMemory,
			BufferSize: bus.DefaultConfig().BufferSize,
			NATS: NATSConfig{
				URL:              natsDefaults.URL,
				ReconnectWaitMs:  int(natsDefaults.ReconnectWait / time.Millisecond),
				MaxReconnects:    natsDefaults.MaxReconnects,
				ConnectTimeoutMs: int(natsDefaults.ConnectTimeout / time.Millisecond),
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}
	return Parse(string(content))
}

// Parse parses TOML content. Unset keys keep their default values.
func Parse(content string) (Config, error) {
	cfg := Default()
	if _, err := toml.Decode(content, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config", errors.WithCategory(errors.CategoryPermanent))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads a config file if it exists, falling back to
// defaults when the path is empty or missing. A malformed file is still
// an error.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFile(path)
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if err := c.Scheduler.ToScheduler().Validate(); err != nil {
		return err
	}
	switch c.Bus.Backend {
	case BackendMemory, BackendNATS:
	default:
		return errors.InvalidInput("bus backend must be \"memory\" or \"nats\"")
	}
	if c.Bus.BufferSize < 0 {
		return errors.InvalidInput("bus buffer size must be >= 0")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.InvalidInput("unknown logging level " + c.Logging.Level)
	}
	return nil
}

// ToScheduler converts to the scheduler's native configuration.
func (c SchedulerConfig) ToScheduler() scheduler.Config {
	return scheduler.Config{
		MaxRetries:          c.MaxRetries,
		RetryDelay:          millis(c.RetryDelayMs),
		ResourceTimeout:     millis(c.ResourceTimeoutMs),
		MaintenanceInterval: millis(c.MaintenanceIntervalMs),
		HistoryLimit:        c.HistoryLimit,
	}
}

// NewBus constructs the configured message bus backend.
func (c BusConfig) NewBus() (bus.MessageBus, error) {
	base := bus.Config{BufferSize: c.BufferSize}
	if base.BufferSize <= 0 {
		base.BufferSize = bus.DefaultConfig().BufferSize
	}

	switch c.Backend {
	case BackendNATS:
		natsCfg := bus.DefaultNATSConfig()
		natsCfg.Config = base
		if c.NATS.URL != "" {
			natsCfg.URL = c.NATS.URL
		}
		natsCfg.Name = c.NATS.Name
		natsCfg.Token = c.NATS.Token
		natsCfg.User = c.NATS.User
		natsCfg.Password = c.NATS.Password
		if c.NATS.ReconnectWaitMs > 0 {
			natsCfg.ReconnectWait = millis(c.NATS.ReconnectWaitMs)
		}
		if c.NATS.MaxReconnects != 0 {
			natsCfg.MaxReconnects = c.NATS.MaxReconnects
		}
		if c.NATS.ConnectTimeoutMs > 0 {
			natsCfg.ConnectTimeout = millis(c.NATS.ConnectTimeoutMs)
		}
		return bus.NewNATSBus(natsCfg)
	case BackendMemory, "":
		return bus.NewMemoryBus(base), nil
	default:
		return nil, errors.InvalidInput("unknown bus backend " + c.Backend)
	}
}

// NewLogger constructs a logger at the configured level.
func (c LoggingConfig) NewLogger() *logging.Logger {
	log := logging.New()
	if c.Level != "" {
		log.SetLevel(logging.ParseLevel(c.Level))
	}
	return log
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
