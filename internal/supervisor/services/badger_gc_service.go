// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package services

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/mbellwood/affinity/internal/logging"
)

// BadgerGCService periodically runs badger value-log garbage
// collection. Badger does not reclaim value-log space on its own.
type BadgerGCService struct {
	db           *badger.DB
	interval     time.Duration
	discardRatio float64
}

// NewBadgerGCService creates a GC loop for db. Zero interval defaults
// to 10 minutes.
func NewBadgerGCService(db *badger.DB, interval time.Duration) *BadgerGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &BadgerGCService{db: db, interval: interval, discardRatio: 0.5}
}

// Serve implements suture.Service.
func (g *BadgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// One pass per tick; ErrNoRewrite means nothing to collect.
			err := g.db.RunValueLogGC(g.discardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("badger value log GC failed")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (g *BadgerGCService) String() string { return "badger-gc" }
