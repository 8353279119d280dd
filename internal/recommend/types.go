// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package recommend

import (
	"iter"
	"time"
)

// Mode specifies which interest vector a query ranks against.
type Mode int

const (
	// ModeCurrent ranks against the user's current interest vector.
	ModeCurrent Mode = iota
	// ModeMomentum ranks against the temporal prediction extrapolated
	// from the user's snapshot history, falling back to the current
	// vector when the history is too short.
	ModeMomentum
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeCurrent:
		return "current"
	case ModeMomentum:
		return "momentum"
	default:
		return "unknown"
	}
}

// Request is one recommendation query.
type Request struct {
	// UserID is the user to recommend for.
	UserID string `json:"user_id"`

	// K is the number of results to return. Defaults to
	// Config.DefaultK when zero; capped at Config.MaxK.
	K int `json:"k,omitempty"`

	// Mode selects current-vector or momentum ranking.
	Mode Mode `json:"mode,omitempty"`

	// Exclude is a set of item IDs to omit from results, typically the
	// user's interaction history.
	Exclude map[string]struct{} `json:"-"`

	// RequestID is a unique identifier for tracing.
	RequestID string `json:"request_id,omitempty"`
}

// ScoredItem is one ranked result.
type ScoredItem struct {
	// ItemID identifies the recommended item.
	ItemID string `json:"item_id"`

	// Score is the cosine similarity to the query vector, in [-1, 1],
	// higher is better.
	Score float64 `json:"score"`
}

// Response is an ordered recommendation result.
type Response struct {
	// Items is ordered by score descending, item ID ascending on ties.
	Items []ScoredItem `json:"items"`

	// ColdStart is true when the user has no interest vector yet; Items
	// is empty in that case.
	ColdStart bool `json:"cold_start,omitempty"`

	// Metadata carries timing and diagnostic information.
	Metadata ResponseMetadata `json:"metadata"`
}

// ResponseMetadata carries timing and diagnostic information.
type ResponseMetadata struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	Mode      string    `json:"mode"`
	LatencyMS int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
}

// Seq returns a restartable iterator over the ranked items. Each call
// yields the same finite sequence from the start.
func (r *Response) Seq() iter.Seq[ScoredItem] {
	return func(yield func(ScoredItem) bool) {
		for _, item := range r.Items {
			if !yield(item) {
				return
			}
		}
	}
}
