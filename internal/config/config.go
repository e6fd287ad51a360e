// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Build defaults with New and layer sources on top in Load.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text, json or tint.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory import job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of import workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps the number of remembered extract line fingerprints.
	DedupeSize int `koanf:"dedupe_size"`

	// DedupeTTLMinutes expires fingerprints; zero keeps them until evicted.
	DedupeTTLMinutes int `koanf:"dedupe_ttl_minutes"`

	// DataFile is the JSON record file. Empty keeps records in memory.
	DataFile string `koanf:"data_file"`

	// FlushIntervalMS debounces saves after single record changes.
	FlushIntervalMS int `koanf:"flush_interval_ms"`

	// JobTTLMinutes keeps finished import job statuses queryable.
	JobTTLMinutes int `koanf:"job_ttl_minutes"`

	// MismatchTolerance is the allowed gap between a reported average and
	// the average of its reconstructed vector.
	MismatchTolerance float64 `koanf:"mismatch_tolerance"`

	// AdverseTypes lists report types that are adverse regardless of average.
	AdverseTypes []string `koanf:"adverse_types"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         1024,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        50_000,
		DedupeTTLMinutes:  0,
		FlushIntervalMS:   1000,
		JobTTLMinutes:     60,
		MismatchTolerance: 0.1,
		AdverseTypes:      []string{"DC"},
	}
}

// DedupeTTL returns DedupeTTLMinutes as a duration.
func (c *Config) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLMinutes) * time.Minute
}

// FlushInterval returns FlushIntervalMS as a duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

// JobTTL returns JobTTLMinutes as a duration.
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.JobTTLMinutes) * time.Minute
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MismatchTolerance < 0:
		return fmt.Errorf("%w: mismatch_tolerance must not be negative", ErrInvalidConfig)
	case c.DedupeTTLMinutes < 0:
		return fmt.Errorf("%w: dedupe_ttl_minutes must not be negative", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "tint":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}
