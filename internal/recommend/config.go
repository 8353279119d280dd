// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package recommend

import (
	"fmt"
	"time"

	"github.com/mbellwood/affinity/internal/interest"
)

// Config tunes the recommendation engine. Zero values are replaced by
// defaults in NewEngine except Params, which is required.
type Config struct {
	// Params are the update-rule tuning knobs (required).
	Params interest.Params

	// DefaultK is the result count when a request does not specify one.
	// Default: 50.
	DefaultK int

	// MaxK caps the per-request result count. Default: 200.
	MaxK int

	// CacheTTL bounds how stale a cached response may be. Default: 1m.
	CacheTTL time.Duration

	// CacheSize is the response cache capacity. Default: 4096.
	CacheSize int

	// HistoryWindow is how many snapshots momentum prediction reads.
	// Default: 10.
	HistoryWindow int

	// SnapshotEvery appends a snapshot after every N applied events for
	// a user. Default: 5.
	SnapshotEvery int

	// DislikesPerMinute rate-limits dislike events per user; zero
	// disables the limiter. Default: 0.
	DislikesPerMinute float64

	// DislikeBurst is the limiter burst size. Default: 1 when the
	// limiter is enabled.
	DislikeBurst int
}

// withDefaults returns cfg with zero values replaced.
func (c Config) withDefaults() Config {
	if c.DefaultK <= 0 {
		c.DefaultK = 50
	}
	if c.MaxK <= 0 {
		c.MaxK = 200
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Minute
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 4096
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 10
	}
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = 5
	}
	if c.DislikesPerMinute > 0 && c.DislikeBurst <= 0 {
		c.DislikeBurst = 1
	}
	return c
}

// Validate checks configuration invariants.
func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	if c.MaxK < c.DefaultK {
		return fmt.Errorf("max_k (%d) must be >= default_k (%d)", c.MaxK, c.DefaultK)
	}
	if c.HistoryWindow < 2 {
		return fmt.Errorf("history_window must be >= 2, got %d", c.HistoryWindow)
	}
	if c.DislikesPerMinute < 0 {
		return fmt.Errorf("dislikes_per_minute must be >= 0, got %v", c.DislikesPerMinute)
	}
	return nil
}
