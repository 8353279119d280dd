// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package interest

import (
	"fmt"
	"time"

	"github.com/mbellwood/affinity/internal/vector"
)

// EventType classifies an interaction signal.
type EventType int

const (
	// EventView indicates the user viewed (engaged with) an item.
	EventView EventType = iota
	// EventDislike indicates an explicit negative signal for an item.
	EventDislike
)

// String returns a human-readable name for the event type.
func (t EventType) String() string {
	switch t {
	case EventView:
		return "view"
	case EventDislike:
		return "dislike"
	default:
		return "unknown"
	}
}

// Event is a single user-item interaction, consumed immediately by Apply.
type Event struct {
	// Type is the interaction kind (view or dislike).
	Type EventType

	// ItemID identifies the interacted item.
	ItemID string

	// ItemEmbedding is the item's position in the similarity space.
	ItemEmbedding vector.Embedding

	// Timestamp is when the interaction occurred.
	Timestamp time.Time
}

// Params holds the update-rule tuning knobs. Both are required
// configuration inputs; there are no hardcoded defaults in the engine
// itself (config supplies the recommended values).
type Params struct {
	// Alpha is the EMA smoothing factor for view events, in (0, 1).
	// Recommended range: [0.1, 0.3].
	Alpha float64

	// Beta is the dislike subtraction strength, in (0, 1].
	// Recommended: <= 0.5 to avoid over-correction.
	Beta float64
}

// Validate checks that the parameters are in their legal open/half-open
// intervals.
func (p Params) Validate() error {
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return fmt.Errorf("alpha must be in (0, 1), got %v", p.Alpha)
	}
	if p.Beta <= 0 || p.Beta > 1 {
		return fmt.Errorf("beta must be in (0, 1], got %v", p.Beta)
	}
	return nil
}

// Apply computes the next interest vector for a user.
//
// old is the user's current vector, or nil for a cold start (no prior
// interaction), in which case the result is exactly the normalized item
// embedding regardless of event type. The returned vector is always unit
// length; Apply never mutates old or the event embedding.
//
// Errors: vector.ErrDimensionMismatch when the event embedding's
// dimensionality differs from old's; vector.ErrDegenerateVector when the
// update produces a near-zero vector (possible under aggressive dislike
// subtraction). On error the caller keeps the old vector.
func Apply(old vector.Embedding, ev Event, p Params) (vector.Embedding, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if len(ev.ItemEmbedding) == 0 {
		return nil, fmt.Errorf("event %s for item %q: %w", ev.Type, ev.ItemID, vector.ErrDegenerateVector)
	}

	// Cold start: seed from the item, no blending.
	if old == nil {
		return vector.Normalize(ev.ItemEmbedding)
	}

	if err := vector.CheckDims(old, ev.ItemEmbedding); err != nil {
		return nil, fmt.Errorf("event %s for item %q: %w", ev.Type, ev.ItemID, err)
	}

	switch ev.Type {
	case EventView:
		blended, err := vector.Blend(ev.ItemEmbedding, old, p.Alpha)
		if err != nil {
			return nil, err
		}
		return vector.Normalize(blended)

	case EventDislike:
		// Signed, unclamped subtraction. No floor is applied so the
		// result can flip direction or collapse; a collapsed result
		// surfaces as ErrDegenerateVector.
		pushed, err := vector.Sub(old, vector.Scale(ev.ItemEmbedding, p.Beta))
		if err != nil {
			return nil, err
		}
		return vector.Normalize(pushed)

	default:
		return nil, fmt.Errorf("unknown event type %d", ev.Type)
	}
}
