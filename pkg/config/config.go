// Package config loads the daemon's configuration: the knobs named in
// spec.md §6 ("Configuration"), given documented defaults and
// layerable under CLI flags, the same YAML-file-plus-flags shape
// cmd/warren's apply command uses for resource manifests.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// raw is the on-disk shape: every duration-like knob is a plain number
// of seconds, since time.Duration's YAML representation (nanoseconds
// as an int) would make the file unreadable to a human editing it.
type raw struct {
	MaxConcurrentTasks              int     `yaml:"max_concurrent_tasks"`
	WorkerCount                     int     `yaml:"worker_count"`
	SchedulerTickIntervalSeconds    float64 `yaml:"scheduler_tick_interval_seconds"`
	TaskUnresponsiveTimeoutSeconds  float64 `yaml:"task_unresponsive_timeout_seconds"`
	TaskAbandonedTimeoutSeconds     float64 `yaml:"task_abandoned_timeout_seconds"`
	DefaultRequestTimeoutSeconds    float64 `yaml:"default_request_timeout_seconds"`
	DataDir                         string  `yaml:"data_dir"`
	HTTPAddr                        string  `yaml:"http_addr"`
	LogLevel                        string  `yaml:"log_level"`
	LogJSON                         bool    `yaml:"log_json"`
}

// Config holds every tunable the async task subsystem reads at
// startup, resolved to the time.Duration / int shapes the rest of the
// code wants. The first six fields mirror spec.md §6 one-to-one; the
// rest are daemon settings outside that list.
type Config struct {
	MaxConcurrentTasks      int
	WorkerCount             int
	SchedulerTickInterval   time.Duration
	TaskUnresponsiveTimeout time.Duration
	TaskAbandonedTimeout    time.Duration
	DefaultRequestTimeout   time.Duration

	// DataDir holds the audit sink's bbolt file and any other on-disk
	// diagnostics state. Never used to restore live registry state
	// (the core's Non-goals explicitly rule that out).
	DataDir string

	// HTTPAddr is where pkg/httpapi's registry-facing surface listens.
	HTTPAddr string

	// LogLevel and LogJSON configure pkg/log.
	LogLevel string
	LogJSON  bool
}

func defaultRaw() raw {
	return raw{
		MaxConcurrentTasks:             1000,
		WorkerCount:                    4,
		SchedulerTickIntervalSeconds:   0.1,
		TaskUnresponsiveTimeoutSeconds: 30,
		TaskAbandonedTimeoutSeconds:    600,
		DefaultRequestTimeoutSeconds:   0, // no overall timeout unless the caller asks for one
		DataDir:                        "/var/lib/pcsd",
		HTTPAddr:                       "127.0.0.1:2224",
		LogLevel:                       "info",
		LogJSON:                        false,
	}
}

func (r raw) resolve() Config {
	return Config{
		MaxConcurrentTasks:      r.MaxConcurrentTasks,
		WorkerCount:             r.WorkerCount,
		SchedulerTickInterval:   secondsToDuration(r.SchedulerTickIntervalSeconds),
		TaskUnresponsiveTimeout: secondsToDuration(r.TaskUnresponsiveTimeoutSeconds),
		TaskAbandonedTimeout:    secondsToDuration(r.TaskAbandonedTimeoutSeconds),
		DefaultRequestTimeout:   secondsToDuration(r.DefaultRequestTimeoutSeconds),
		DataDir:                 r.DataDir,
		HTTPAddr:                r.HTTPAddr,
		LogLevel:                r.LogLevel,
		LogJSON:                 r.LogJSON,
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Default returns the configuration the daemon runs with when no file
// or flags override a value.
func Default() Config {
	return defaultRaw().resolve()
}

// Load reads a YAML file at path and overlays it onto Default(). A
// missing file is not an error - the daemon runs on defaults plus
// whatever flags the caller passed - anything else (bad permissions,
// malformed YAML) is.
func Load(path string) (Config, error) {
	r := defaultRaw()
	if path == "" {
		return r.resolve(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r.resolve(), nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &r); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return r.resolve(), nil
}

// Validate rejects a configuration that would make the daemon
// internally inconsistent (a scheduler with no workers, a tick
// interval of zero, and so on).
func (c Config) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("config: worker_count must be positive, got %d", c.WorkerCount)
	}
	if c.SchedulerTickInterval <= 0 {
		return fmt.Errorf("config: scheduler_tick_interval_seconds must be positive, got %s", c.SchedulerTickInterval)
	}
	if c.TaskUnresponsiveTimeout <= 0 {
		return fmt.Errorf("config: task_unresponsive_timeout_seconds must be positive, got %s", c.TaskUnresponsiveTimeout)
	}
	if c.TaskAbandonedTimeout <= 0 {
		return fmt.Errorf("config: task_abandoned_timeout_seconds must be positive, got %s", c.TaskAbandonedTimeout)
	}
	return nil
}
