// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package store

import (
	"context"
	"sync"

	"github.com/mbellwood/affinity/internal/interest"
	"github.com/mbellwood/affinity/internal/vector"
)

// MemoryStore is an in-memory Repository for development and tests.
// Data does not survive process restarts.
type MemoryStore struct {
	mu        sync.RWMutex
	closed    bool
	vectors   map[string]vector.Embedding
	histories map[string][]interest.Snapshot
	userLocks map[string]*sync.Mutex

	// maxHistory bounds the retained snapshots per user; older entries
	// are trimmed on append. Zero means unbounded.
	maxHistory int
}

// NewMemoryStore creates an empty in-memory store. maxHistory bounds the
// snapshot log per user (0 = unbounded).
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		vectors:    make(map[string]vector.Embedding),
		histories:  make(map[string][]interest.Snapshot),
		userLocks:  make(map[string]*sync.Mutex),
		maxHistory: maxHistory,
	}
}

// userLock returns the per-user mutex, creating it on first use.
func (s *MemoryStore) userLock(userID string) (*sync.Mutex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l, nil
}

// Get returns the user's current vector, ok=false for cold start.
func (s *MemoryStore) Get(_ context.Context, userID string) (vector.Embedding, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.vectors[userID]
	if !ok {
		return nil, false, nil
	}
	return v.Clone(), true, nil
}

// Upsert overwrites the stored vector for the user.
func (s *MemoryStore) Upsert(_ context.Context, userID string, vec vector.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.vectors[userID] = vec.Clone()
	return nil
}

// Update atomically applies fn to the user's vector. The per-user mutex
// serializes concurrent events for one user without blocking other users.
func (s *MemoryStore) Update(ctx context.Context, userID string, fn UpdateFunc) (vector.Embedding, error) {
	lock, err := s.userLock(userID)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	old, ok, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	next, err := fn(old, ok)
	if err != nil {
		return nil, err
	}
	if err := s.Upsert(ctx, userID, next); err != nil {
		return nil, err
	}
	return next, nil
}

// AppendSnapshot appends to the user's history, trimming to maxHistory.
func (s *MemoryStore) AppendSnapshot(_ context.Context, userID string, snap interest.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	snap.Vector = snap.Vector.Clone()
	h := append(s.histories[userID], snap)
	if s.maxHistory > 0 && len(h) > s.maxHistory {
		h = h[len(h)-s.maxHistory:]
	}
	s.histories[userID] = h
	return nil
}

// History returns up to limit most recent snapshots, oldest first.
func (s *MemoryStore) History(_ context.Context, userID string, limit int) ([]interest.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	h := s.histories[userID]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]interest.Snapshot, len(h))
	copy(out, h)
	return out, nil
}

// Close marks the store closed; subsequent operations fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
