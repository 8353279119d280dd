// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

// Package embedstore defines the item-catalog collaborator: an opaque
// similarity-search index holding one immutable embedding per item.
//
// The core treats the store as external; MemoryIndex is the in-process
// implementation (brute-force cosine scan) and BreakerStore wraps any
// implementation with a circuit breaker for remote backends. Scoring uses
// cosine similarity (higher is better) with ties broken by ascending item
// ID so results are reproducible across runs.
package embedstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mbellwood/affinity/internal/vector"
)

// ErrUnknownItem indicates a lookup for an item the catalog has never
// seen.
var ErrUnknownItem = errors.New("unknown item")

// Item is a catalog entry: an identifier plus an embedding, immutable
// once stored.
type Item struct {
	ID        string           `json:"id"`
	Embedding vector.Embedding `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Neighbor is one similarity-search result.
type Neighbor struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// Store is the external-collaborator contract for item embeddings.
type Store interface {
	// GetEmbedding returns the stored embedding for itemID, or
	// ErrUnknownItem.
	GetEmbedding(ctx context.Context, itemID string) (vector.Embedding, error)

	// NearestNeighbors returns up to limit items ranked by cosine
	// similarity to query, descending, ties broken by ascending item ID.
	NearestNeighbors(ctx context.Context, query vector.Embedding, limit int) ([]Neighbor, error)
}

// MemoryIndex is an in-process brute-force similarity index. It is safe
// for concurrent use; reads never block other reads.
type MemoryIndex struct {
	mu    sync.RWMutex
	dim   int
	items map[string]Item
}

// NewMemoryIndex creates an index for embeddings of dimensionality dim.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{dim: dim, items: make(map[string]Item)}
}

// Dim returns the index dimensionality.
func (m *MemoryIndex) Dim() int { return m.dim }

// Len returns the number of items in the catalog.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Upsert stores an item embedding. The embedding is dimension-checked and
// rejected when (near-)zero, which would make cosine scoring undefined.
func (m *MemoryIndex) Upsert(_ context.Context, item Item) error {
	if item.ID == "" {
		return errors.New("item ID must not be empty")
	}
	if len(item.Embedding) != m.dim {
		return fmt.Errorf("item %q: %w: %d vs %d", item.ID, vector.ErrDimensionMismatch, m.dim, len(item.Embedding))
	}
	normalized, err := vector.Normalize(item.Embedding)
	if err != nil {
		return fmt.Errorf("item %q: %w", item.ID, err)
	}
	// Store the normalized form so the scan reduces to a dot product.
	item.Embedding = normalized

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	return nil
}

// GetItem returns a catalog entry with its normalized embedding.
func (m *MemoryIndex) GetItem(_ context.Context, itemID string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[itemID]
	if !ok {
		return Item{}, fmt.Errorf("item %q: %w", itemID, ErrUnknownItem)
	}
	return item, nil
}

// GetEmbedding implements Store.
func (m *MemoryIndex) GetEmbedding(ctx context.Context, itemID string) (vector.Embedding, error) {
	item, err := m.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return item.Embedding.Clone(), nil
}

// NearestNeighbors implements Store with a full scan. Stored embeddings
// are unit length, so cosine similarity is the plain dot product against
// the normalized query.
func (m *MemoryIndex) NearestNeighbors(ctx context.Context, query vector.Embedding, limit int) ([]Neighbor, error) {
	if limit <= 0 {
		return nil, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("query: %w: %d vs %d", vector.ErrDimensionMismatch, m.dim, len(query))
	}
	q, err := vector.Normalize(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scored := make([]Neighbor, 0, len(m.items))
	for id, item := range m.items {
		scored = append(scored, Neighbor{ItemID: id, Score: vector.Dot(q, item.Embedding)})
	}

	// Descending by score, ascending item ID on ties for reproducibility.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ItemID < scored[j].ItemID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}
