// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package interest

import (
	"errors"
	"fmt"
	"time"

	"github.com/mbellwood/affinity/internal/vector"
)

// ErrInsufficientHistory indicates fewer than two snapshots, which is not
// enough to compute a direction of change. Callers fall back to the
// user's current interest vector unmodified.
var ErrInsufficientHistory = errors.New("insufficient history: need at least 2 snapshots")

// Snapshot is a timestamped copy of a user's interest vector, appended to
// an append-only history sequence.
type Snapshot struct {
	Vector    vector.Embedding `json:"vector"`
	TakenAt   time.Time        `json:"taken_at"`
	EventSeen int64            `json:"events_seen,omitempty"`
}

// Predict extrapolates near-future interest from a snapshot history
// ordered oldest first, most recent last.
//
// The history is split into an earlier and a later half; with an odd
// count the later half gets the extra element. Momentum is the
// component-wise difference between the two half means, and the
// prediction is normalize(laterMean + momentum). No normalization is
// applied to the momentum itself.
//
// Errors: ErrInsufficientHistory for fewer than two snapshots;
// vector.ErrDimensionMismatch for inconsistent snapshot dimensionality;
// vector.ErrDegenerateVector when the extrapolation cancels to near-zero.
func Predict(history []Snapshot) (vector.Embedding, error) {
	if len(history) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientHistory, len(history))
	}

	// Odd count: the later (more recent) half gets the extra element.
	mid := len(history) / 2

	earlier := make([]vector.Embedding, 0, mid)
	for _, s := range history[:mid] {
		earlier = append(earlier, s.Vector)
	}
	later := make([]vector.Embedding, 0, len(history)-mid)
	for _, s := range history[mid:] {
		later = append(later, s.Vector)
	}

	avgOld, err := vector.Mean(earlier)
	if err != nil {
		return nil, fmt.Errorf("earlier half: %w", err)
	}
	avgNew, err := vector.Mean(later)
	if err != nil {
		return nil, fmt.Errorf("later half: %w", err)
	}

	momentum, err := vector.Sub(avgNew, avgOld)
	if err != nil {
		return nil, err
	}
	extrapolated, err := vector.Add(avgNew, momentum)
	if err != nil {
		return nil, err
	}
	return vector.Normalize(extrapolated)
}
