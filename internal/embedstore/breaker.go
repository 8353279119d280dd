// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package embedstore

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mbellwood/affinity/internal/vector"
)

// BreakerConfig tunes the circuit breaker around a Store backend.
type BreakerConfig struct {
	// Name identifies the breaker in state-change logs and metrics.
	Name string

	// FailureThreshold is the consecutive-failure count that opens the
	// breaker.
	FailureThreshold uint32

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// MaxRequests is the number of probe requests allowed half-open.
	MaxRequests uint32
}

// DefaultBreakerConfig returns conservative production defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Timeout:          30 * time.Second,
		MaxRequests:      1,
	}
}

// BreakerStore wraps a Store with a circuit breaker so a failing remote
// embedding backend degrades fast instead of piling up timeouts. The
// in-process MemoryIndex does not need one; remote vector indexes do.
type BreakerStore struct {
	inner Store
	get   *gobreaker.CircuitBreaker[vector.Embedding]
	nn    *gobreaker.CircuitBreaker[[]Neighbor]
}

// NewBreakerStore wraps inner with separate breakers per operation, so a
// broken similarity search does not take down embedding lookups.
// onStateChange may be nil.
func NewBreakerStore(inner Store, cfg BreakerConfig, onStateChange func(name string, from, to gobreaker.State)) *BreakerStore {
	settings := func(suffix string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        cfg.Name + suffix,
			MaxRequests: cfg.MaxRequests,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			OnStateChange: onStateChange,
		}
	}
	return &BreakerStore{
		inner: inner,
		get:   gobreaker.NewCircuitBreaker[vector.Embedding](settings(".get")),
		nn:    gobreaker.NewCircuitBreaker[[]Neighbor](settings(".nn")),
	}
}

// GetEmbedding implements Store.
func (b *BreakerStore) GetEmbedding(ctx context.Context, itemID string) (vector.Embedding, error) {
	return b.get.Execute(func() (vector.Embedding, error) {
		return b.inner.GetEmbedding(ctx, itemID)
	})
}

// NearestNeighbors implements Store.
func (b *BreakerStore) NearestNeighbors(ctx context.Context, query vector.Embedding, limit int) ([]Neighbor, error) {
	return b.nn.Execute(func() ([]Neighbor, error) {
		return b.inner.NearestNeighbors(ctx, query, limit)
	})
}

// State reports the similarity-search breaker state for health checks.
func (b *BreakerStore) State() gobreaker.State {
	return b.nn.State()
}
