// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - Validate reports problems wrapped with ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// DefaultMaxUploadBytes is the intake limit: 10 MiB.
const DefaultMaxUploadBytes = 10 * 1024 * 1024

// MaxWaitTimeoutMS bounds wait_timeout_ms. The server write timeout is
// derived from it, so a wait never outlives its response.
const MaxWaitTimeoutMS = 120_000

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// MaxUploadBytes bounds accepted image size; larger files fail validation.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// ProcessingDelayMS is the simulated identification latency.
	ProcessingDelayMS int `koanf:"processing_delay_ms"`

	// ResultCount is the number of ranked candidates per run.
	ResultCount int `koanf:"result_count"`

	// SessionTTLSeconds evicts sessions idle for longer than this.
	SessionTTLSeconds int `koanf:"session_ttl_seconds"`

	// SessionCleanupSeconds is the eviction sweep interval.
	SessionCleanupSeconds int `koanf:"session_cleanup_seconds"`

	// NoticeQueueSize bounds the in-memory notice queue.
	NoticeQueueSize int `koanf:"notice_queue_size"`

	// NoticeWorkerCount sets the number of notice dispatchers.
	NoticeWorkerCount int `koanf:"notice_worker_count"`

	// RandomSeed fixes the ranking random source; 0 seeds from the clock.
	RandomSeed uint64 `koanf:"random_seed"`

	// WaitTimeoutMS caps how long POST /identify?wait=true blocks.
	WaitTimeoutMS int `koanf:"wait_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		MaxUploadBytes:        DefaultMaxUploadBytes,
		ProcessingDelayMS:     3000,
		ResultCount:           3,
		SessionTTLSeconds:     1800,
		SessionCleanupSeconds: 60,
		NoticeQueueSize:       1024,
		NoticeWorkerCount:     runtime.NumCPU(),
		RandomSeed:            0,
		WaitTimeoutMS:         10_000,
	}
}

// ProcessingDelay returns the simulated latency as a duration.
func (c *Config) ProcessingDelay() time.Duration {
	return time.Duration(c.ProcessingDelayMS) * time.Millisecond
}

// SessionTTL returns the idle expiry as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// SessionCleanup returns the sweep interval as a duration.
func (c *Config) SessionCleanup() time.Duration {
	return time.Duration(c.SessionCleanupSeconds) * time.Second
}

// WaitTimeout returns the identify wait cap as a duration.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutMS) * time.Millisecond
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	case c.ProcessingDelayMS < 0:
		return fmt.Errorf("%w: processing_delay_ms must not be negative", ErrInvalidConfig)
	case c.ResultCount < 1:
		return fmt.Errorf("%w: result_count must be at least 1", ErrInvalidConfig)
	case c.SessionTTLSeconds < 1:
		return fmt.Errorf("%w: session_ttl_seconds must be at least 1", ErrInvalidConfig)
	case c.NoticeQueueSize < 1:
		return fmt.Errorf("%w: notice_queue_size must be at least 1", ErrInvalidConfig)
	case c.WaitTimeoutMS < 0 || c.WaitTimeoutMS > MaxWaitTimeoutMS:
		return fmt.Errorf("%w: wait_timeout_ms must be between 0 and %d", ErrInvalidConfig, MaxWaitTimeoutMS)
	}
	return nil
}
