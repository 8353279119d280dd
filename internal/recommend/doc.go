// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

// Package recommend coordinates the interest repository, the update
// rules, and the embedding index into a recommendation engine.
//
// # Architecture
//
//	interaction event ──> Engine.ApplyEvent ──> store.Repository.Update
//	                                            (atomic per user)
//	recommendation req ─> Engine.Recommend ──> embedstore.NearestNeighbors
//
// Updates go through the repository's atomic read-modify-write, so two
// concurrent events for one user never lose an update. Queries read the
// current vector without coordination and may observe a vector that is a
// few events stale; that eventual consistency is deliberate.
//
// # Scoring Convention
//
// Results are ranked by cosine similarity, higher is better, descending
// order. Ties are broken by ascending item ID so results are
// reproducible across runs.
//
// # Cold Start
//
// A user with no recorded interaction gets an empty result with the
// ColdStart flag set, not an error. Their first event seeds their vector
// with that item's embedding.
//
// # Usage
//
//	engine, err := recommend.NewEngine(recommend.Config{
//	    Params: interest.Params{Alpha: 0.2, Beta: 0.3},
//	}, repo, index, logger)
//
//	_, err = engine.ApplyEvent(ctx, "user-1", interest.Event{
//	    Type: interest.EventView, ItemID: "item-9", ItemEmbedding: emb,
//	})
//
//	resp, err := engine.Recommend(ctx, recommend.Request{UserID: "user-1", K: 20})
//
// # Thread Safety
//
// The engine is safe for concurrent use.
package recommend
