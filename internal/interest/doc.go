// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

// Package interest implements the user interest vector update rules.
//
// # Architecture
//
// The package holds the algorithmic core of Affinity: pure functions that
// map (current vector, interaction event, parameters) to a new vector.
// All state lives in the repository layer (internal/store); nothing here
// touches storage, which keeps every rule unit-testable without a
// database.
//
// # Update Rules
//
//   - Cold start: a user's first interaction seeds the vector with the
//     item's embedding, normalized.
//   - View (EMA): new = normalize(alpha*item + (1-alpha)*old). Larger
//     alpha biases toward recent behavior; values above 0.5 produce
//     visible instability, values under 0.1 adapt too slowly.
//   - Dislike: new = normalize(old - beta*item). The subtraction is
//     unclamped: repeated dislikes of near-duplicate items can overshoot,
//     and a degenerate (near-zero) result fails with
//     vector.ErrDegenerateVector rather than storing NaN/Inf. Callers
//     that care should rate-limit dislike frequency (the event processor
//     does, via golang.org/x/time/rate).
//
// # Temporal Prediction
//
// Predict extrapolates a user's momentum from an append-only snapshot
// history: the difference between the mean of the later half and the mean
// of the earlier half of the history, added to the later mean. With a
// constant history the momentum is zero and the prediction collapses to
// the (normalized) current vector.
//
// # Determinism
//
// Same inputs produce identical outputs. There is no randomness, no
// hidden state, and no clock access in this package.
package interest
