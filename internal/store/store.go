// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

// Package store persists one interest vector per user plus an append-only
// snapshot history for temporal prediction.
//
// Two implementations are provided: MemoryStore for development and
// tests, and BadgerStore for durable single-node deployments. Both honor
// the same contract:
//
//   - Get of an unknown user returns (nil, false, nil). Absence is a
//     valid cold-start state, not an error.
//   - Upsert overwrites the stored vector atomically per user.
//   - Update runs a read-modify-write atomically per user: two
//     concurrent events for the same user can never both read the same
//     old vector and silently overwrite one another's result.
//     Cross-user operations are fully independent.
//   - AppendSnapshot/History maintain a bounded, time-ordered snapshot
//     log, oldest first.
//
// Readers (recommendation queries) may observe a slightly stale vector
// while an Update is in flight; eventual consistency is sufficient and no
// transaction spans an update and a query.
package store

import (
	"context"
	"errors"

	"github.com/mbellwood/affinity/internal/interest"
	"github.com/mbellwood/affinity/internal/vector"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// UpdateFunc computes a new vector from the currently stored one.
// ok is false when the user has no vector yet (cold start). Returning an
// error aborts the update and leaves the stored vector untouched.
type UpdateFunc func(old vector.Embedding, ok bool) (vector.Embedding, error)

// Repository is the per-user interest vector store.
type Repository interface {
	// Get returns the user's current vector, or ok=false for a user with
	// no recorded interaction yet.
	Get(ctx context.Context, userID string) (vec vector.Embedding, ok bool, err error)

	// Upsert overwrites the stored vector for the user.
	Upsert(ctx context.Context, userID string, vec vector.Embedding) error

	// Update atomically applies fn to the user's current vector and
	// stores the result, returning the new vector.
	Update(ctx context.Context, userID string, fn UpdateFunc) (vector.Embedding, error)

	// AppendSnapshot appends a snapshot to the user's history, trimming
	// the oldest entries beyond the store's retention bound.
	AppendSnapshot(ctx context.Context, userID string, snap interest.Snapshot) error

	// History returns up to limit of the user's most recent snapshots,
	// ordered oldest first (most recent last). limit <= 0 means all
	// retained snapshots.
	History(ctx context.Context, userID string, limit int) ([]interest.Snapshot, error)

	// Close releases store resources.
	Close() error
}
