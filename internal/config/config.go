// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

// Package config loads and validates Gambit configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//  1. Built-in defaults
//  2. Config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables with the GAMBIT_ prefix, using "__" as the
//     section separator: GAMBIT_DATABASE__POOL__MAX_CONNECTIONS=15
package config

import (
	"time"
)

// Config is the root configuration for the Gambit server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	API      APIConfig      `koanf:"api"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds settings for the embedded DuckDB dataset and its
// connection pool. The dataset is opened read-only; Gambit never writes it.
type DatabaseConfig struct {
	// Path is the DuckDB database file holding the games dataset.
	Path string `koanf:"path" validate:"required"`

	// MaxMemory is the per-connection DuckDB memory limit (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the per-connection DuckDB thread count. 0 = NumCPU.
	Threads int `koanf:"threads"`

	Pool PoolConfig `koanf:"pool"`
}

// PoolConfig bounds concurrent access to the database file.
type PoolConfig struct {
	// MinConnections are opened eagerly at startup and never reaped.
	MinConnections int `koanf:"min_connections" validate:"min=0"`

	// MaxConnections caps the number of simultaneously open handles.
	MaxConnections int `koanf:"max_connections" validate:"min=1"`

	// AcquireTimeout bounds how long a caller waits in the queue for a
	// connection before receiving a timeout error.
	AcquireTimeout time.Duration `koanf:"acquire_timeout"`

	// IdleTimeout is how long a connection may sit idle before the reaper
	// closes it (never below MinConnections).
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// ReapInterval is how often the idle reaper sweeps.
	ReapInterval time.Duration `koanf:"reap_interval"`

	// MaxQueueDepth caps the acquire wait queue; 0 means unbounded and
	// load shedding relies on AcquireTimeout alone. This is the explicit
	// back-pressure tuning knob.
	MaxQueueDepth int `koanf:"max_queue_depth" validate:"min=0"`

	// ShutdownGrace is how long Close waits for in-use connections to
	// drain before force-closing them.
	ShutdownGrace time.Duration `koanf:"shutdown_grace"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	// Capacity is the entry cap; beyond it the cache evicts in insertion
	// order (FIFO).
	Capacity int `koanf:"capacity" validate:"min=1"`

	// SweepInterval is how often expired entries are swept in the
	// background. Expired entries are also evicted lazily on read.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	TTL TTLConfig `koanf:"ttl"`
}

// TTLConfig carries the per-endpoint result TTLs. These are deployment
// tuning values, not derivable constants: volatile aggregates get short
// TTLs, expensive rollups long ones.
type TTLConfig struct {
	Overview time.Duration `koanf:"overview"`
	Openings time.Duration `koanf:"openings"`
	Results  time.Duration `koanf:"results"`
	Games    time.Duration `koanf:"games"`
}

// APIConfig holds HTTP API behavior settings.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size" validate:"min=1"`
	MaxPageSize     int           `koanf:"max_page_size" validate:"min=1"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// BreakerConfig tunes the circuit breaker guarding query execution. When
// consecutive failures reach the threshold the breaker opens and callers get
// an immediate "database unavailable" error instead of queuing on a broken
// handle.
type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures" validate:"min=1"`
	OpenTimeout         time.Duration `koanf:"open_timeout"`
	HalfOpenRequests    uint32        `koanf:"half_open_requests" validate:"min=1"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before file and env
// overrides.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3858,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/gambit.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
			Pool: PoolConfig{
				MinConnections: 3,
				MaxConnections: 15,
				AcquireTimeout: 5 * time.Second,
				IdleTimeout:    5 * time.Minute,
				ReapInterval:   30 * time.Second,
				MaxQueueDepth:  256,
				ShutdownGrace:  10 * time.Second,
			},
		},
		Cache: CacheConfig{
			Capacity:      4096,
			SweepInterval: 5 * time.Minute,
			TTL: TTLConfig{
				Overview: 10 * time.Minute,
				Openings: 5 * time.Minute,
				Results:  1 * time.Minute,
				Games:    1 * time.Minute,
			},
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Breaker: BreakerConfig{
			Enabled:             true,
			ConsecutiveFailures: 5,
			OpenTimeout:         30 * time.Second,
			HalfOpenRequests:    1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
