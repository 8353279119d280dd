// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

// Package config defines Affinity's layered configuration: built-in
// defaults, overridden by an optional YAML file, overridden by
// environment variables (Koanf v2).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Affinity server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Engine    EngineConfig    `koanf:"engine"`
	Temporal  TemporalConfig  `koanf:"temporal"`
	Recommend RecommendConfig `koanf:"recommend"`
	Store     StoreConfig     `koanf:"store"`
	NATS      NATSConfig      `koanf:"nats"`
	API       APIConfig       `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EngineConfig tunes the interest update rules. Alpha and Beta are
// required inputs to the update engine; the defaults here are the
// recommended starting points, not hardcoded algorithm constants.
type EngineConfig struct {
	// Dimension is the embedding dimensionality shared by every vector
	// in the deployment. Typical range: 100-1500.
	Dimension int `koanf:"dimension"`

	// Alpha is the EMA smoothing factor for view events, in (0, 1).
	// Above 0.5 the vector becomes visibly unstable; under 0.1 it adapts
	// too slowly. Recommended range: [0.1, 0.3].
	Alpha float64 `koanf:"alpha"`

	// Beta is the dislike subtraction strength, in (0, 1].
	// Recommended: <= 0.5 to avoid over-correction.
	Beta float64 `koanf:"beta"`

	// DislikesPerMinute rate-limits dislike events per user. The
	// subtraction rule is unclamped, so repeated dislikes of
	// near-duplicate items can overshoot; the limiter bounds how fast.
	// Zero disables the limiter.
	DislikesPerMinute float64 `koanf:"dislikes_per_minute"`

	// DislikeBurst is the limiter burst size.
	DislikeBurst int `koanf:"dislike_burst"`
}

// TemporalConfig tunes snapshot capture and momentum prediction.
type TemporalConfig struct {
	// HistoryWindow is how many snapshots the predictor reads.
	// Recommended: 10 (split into two halves of 5).
	HistoryWindow int `koanf:"history_window"`

	// SnapshotEvery appends a snapshot after every N applied events.
	SnapshotEvery int `koanf:"snapshot_every"`

	// MaxHistory bounds retained snapshots per user in the store.
	MaxHistory int `koanf:"max_history"`
}

// RecommendConfig tunes the recommendation query engine.
type RecommendConfig struct {
	// DefaultK is the result count when a request does not specify one.
	DefaultK int `koanf:"default_k"`

	// MaxK caps the per-request result count.
	MaxK int `koanf:"max_k"`

	// CacheTTL is how long a cached response stays valid. Recommendation
	// reads are eventually consistent with updates, so a short TTL only
	// widens an already-accepted staleness window.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// CacheSize is the response cache capacity (entries).
	CacheSize int `koanf:"cache_size"`
}

// StoreConfig selects and locates the interest vector repository.
type StoreConfig struct {
	// Backend is "badger" (durable) or "memory" (dev/test).
	Backend string `koanf:"backend"`

	// Path is the BadgerDB directory for the badger backend.
	Path string `koanf:"path"`
}

// NATSConfig holds event-pipeline settings.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`

	// Topic carries interaction events; PoisonTopic receives events that
	// exhaust handler retries.
	Topic       string `koanf:"topic"`
	PoisonTopic string `koanf:"poison_topic"`

	QueueGroup  string `koanf:"queue_group"`
	DurableName string `koanf:"durable_name"`

	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
}

// APIConfig holds HTTP API limits.
type APIConfig struct {
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// defaultConfig returns a Config with all default values. These are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8642,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Engine: EngineConfig{
			Dimension:         384,
			Alpha:             0.2,
			Beta:              0.3,
			DislikesPerMinute: 10,
			DislikeBurst:      5,
		},
		Temporal: TemporalConfig{
			HistoryWindow: 10,
			SnapshotEvery: 5,
			MaxHistory:    100,
		},
		Recommend: RecommendConfig{
			DefaultK:  50,
			MaxK:      200,
			CacheTTL:  1 * time.Minute,
			CacheSize: 4096,
		},
		Store: StoreConfig{
			Backend: "badger",
			Path:    "/data/affinity",
		},
		NATS: NATSConfig{
			Enabled:              false,
			URL:                  "nats://127.0.0.1:4222",
			EmbeddedServer:       true,
			StoreDir:             "/data/nats/jetstream",
			Topic:                "interest.events",
			PoisonTopic:          "interest.events.poison",
			QueueGroup:           "interest-processors",
			DurableName:          "interest-processor",
			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			CloseTimeout:         30 * time.Second,
		},
		API: APIConfig{
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
			CORSOrigins:     []string{"*"},
		},
	}
}

// Validate checks configuration invariants. It is called by Load, and
// again by components that accept a Config directly.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %v", c.Server.Timeout)
	}

	if c.Engine.Dimension < 1 || c.Engine.Dimension > 8192 {
		return fmt.Errorf("engine.dimension must be in [1, 8192], got %d", c.Engine.Dimension)
	}
	if c.Engine.Alpha <= 0 || c.Engine.Alpha >= 1 {
		return fmt.Errorf("engine.alpha must be in (0, 1), got %v", c.Engine.Alpha)
	}
	if c.Engine.Beta <= 0 || c.Engine.Beta > 1 {
		return fmt.Errorf("engine.beta must be in (0, 1], got %v", c.Engine.Beta)
	}
	if c.Engine.DislikesPerMinute < 0 {
		return fmt.Errorf("engine.dislikes_per_minute must be >= 0, got %v", c.Engine.DislikesPerMinute)
	}

	if c.Temporal.HistoryWindow < 2 {
		return fmt.Errorf("temporal.history_window must be >= 2, got %d", c.Temporal.HistoryWindow)
	}
	if c.Temporal.SnapshotEvery < 1 {
		return fmt.Errorf("temporal.snapshot_every must be >= 1, got %d", c.Temporal.SnapshotEvery)
	}
	if c.Temporal.MaxHistory != 0 && c.Temporal.MaxHistory < c.Temporal.HistoryWindow {
		return fmt.Errorf("temporal.max_history (%d) must be 0 or >= history_window (%d)",
			c.Temporal.MaxHistory, c.Temporal.HistoryWindow)
	}

	if c.Recommend.DefaultK < 1 {
		return fmt.Errorf("recommend.default_k must be >= 1, got %d", c.Recommend.DefaultK)
	}
	if c.Recommend.MaxK < c.Recommend.DefaultK {
		return fmt.Errorf("recommend.max_k (%d) must be >= default_k (%d)",
			c.Recommend.MaxK, c.Recommend.DefaultK)
	}

	switch c.Store.Backend {
	case "badger":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the badger backend")
		}
	case "memory":
	default:
		return fmt.Errorf("store.backend must be badger or memory, got %q", c.Store.Backend)
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
			return fmt.Errorf("nats.url is required when nats is enabled without an embedded server")
		}
		if c.NATS.Topic == "" {
			return fmt.Errorf("nats.topic must not be empty")
		}
	}

	if c.API.RateLimitReqs < 1 {
		return fmt.Errorf("api.rate_limit_reqs must be >= 1, got %d", c.API.RateLimitReqs)
	}
	if c.API.RateLimitWindow <= 0 {
		return fmt.Errorf("api.rate_limit_window must be positive, got %v", c.API.RateLimitWindow)
	}

	return nil
}
