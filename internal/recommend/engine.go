// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mbellwood/affinity/internal/cache"
	"github.com/mbellwood/affinity/internal/embedstore"
	"github.com/mbellwood/affinity/internal/interest"
	"github.com/mbellwood/affinity/internal/logging"
	"github.com/mbellwood/affinity/internal/metrics"
	"github.com/mbellwood/affinity/internal/store"
	"github.com/mbellwood/affinity/internal/vector"
)

// ErrRateLimited indicates a dislike event dropped by the per-user
// limiter. The stored vector is unchanged; the caller may retry later.
var ErrRateLimited = errors.New("dislike rate limit exceeded")

// userState tracks per-user bookkeeping the engine owns: the applied
// event count driving snapshot cadence, the cache version used for
// invalidation, and the dislike limiter.
type userState struct {
	events       atomic.Int64
	cacheVersion atomic.Uint64
	dislikes     *rate.Limiter
}

// Engine coordinates updates and queries. It is safe for concurrent use.
type Engine struct {
	config Config
	logger zerolog.Logger

	repo  store.Repository
	index embedstore.Store

	cache *cache.LRU[*Response]

	mu    sync.Mutex
	users map[string]*userState
}

// NewEngine creates a recommendation engine over the given repository
// and embedding index.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg Config, repo store.Repository, index embedstore.Store, logger zerolog.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if index == nil {
		return nil, errors.New("embedding index is required")
	}
	return &Engine{
		config: cfg,
		logger: logger.With().Str("component", "recommend").Logger(),
		repo:   repo,
		index:  index,
		cache:  cache.NewLRU[*Response](cfg.CacheSize, cfg.CacheTTL),
		users:  make(map[string]*userState),
	}, nil
}

func (e *Engine) userState(userID string) *userState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.users[userID]
	if !ok {
		st = &userState{}
		if e.config.DislikesPerMinute > 0 {
			st.dislikes = rate.NewLimiter(rate.Limit(e.config.DislikesPerMinute/60), e.config.DislikeBurst)
		}
		e.users[userID] = st
	}
	return st
}

// ApplyEvent applies one interaction event to the user's interest
// vector through the repository's atomic read-modify-write, appends a
// snapshot every SnapshotEvery applied events, and invalidates the
// user's cached recommendations.
//
// A degenerate or dimension-mismatched update fails without touching the
// stored vector. Dislike events beyond the per-user rate limit fail with
// ErrRateLimited.
func (e *Engine) ApplyEvent(ctx context.Context, userID string, ev interest.Event) (vector.Embedding, error) {
	start := time.Now()
	st := e.userState(userID)

	if ev.Type == interest.EventDislike && st.dislikes != nil && !st.dislikes.Allow() {
		metrics.RecordEvent(ev.Type.String(), "rate_limited", 0)
		return nil, fmt.Errorf("user %s item %s: %w", userID, ev.ItemID, ErrRateLimited)
	}

	next, err := e.repo.Update(ctx, userID, func(old vector.Embedding, _ bool) (vector.Embedding, error) {
		return interest.Apply(old, ev, e.config.Params)
	})
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, vector.ErrDegenerateVector):
			outcome = "degenerate"
		case errors.Is(err, vector.ErrDimensionMismatch):
			outcome = "mismatch"
		}
		metrics.RecordEvent(ev.Type.String(), outcome, 0)
		logger := logging.Ctx(ctx)
		logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("item_id", ev.ItemID).
			Str("event_type", ev.Type.String()).
			Msg("event rejected")
		return nil, err
	}

	st.cacheVersion.Add(1)
	count := st.events.Add(1)
	if count%int64(e.config.SnapshotEvery) == 0 {
		snap := interest.Snapshot{Vector: next, TakenAt: time.Now().UTC(), EventSeen: count}
		if err := e.repo.AppendSnapshot(ctx, userID, snap); err != nil {
			// The vector update already committed; a failed snapshot
			// only degrades momentum prediction.
			logger := logging.Ctx(ctx)
			logger.Error().Err(err).Str("user_id", userID).Msg("snapshot append failed")
		} else {
			metrics.SnapshotsAppended.Inc()
		}
	}

	metrics.RecordEvent(ev.Type.String(), "applied", time.Since(start))
	e.logger.Debug().
		Str("user_id", userID).
		Str("item_id", ev.ItemID).
		Str("event_type", ev.Type.String()).
		Int64("events_seen", count).
		Msg("event applied")
	return next, nil
}

// Interest returns the user's current vector; ok is false for cold start.
func (e *Engine) Interest(ctx context.Context, userID string) (vector.Embedding, bool, error) {
	return e.repo.Get(ctx, userID)
}

// Predicted returns the momentum-extrapolated vector for the user.
// With fewer than two snapshots it falls back to the current vector; a
// cold-start user yields ok=false.
func (e *Engine) Predicted(ctx context.Context, userID string) (vector.Embedding, bool, error) {
	history, err := e.repo.History(ctx, userID, e.config.HistoryWindow)
	if err != nil {
		return nil, false, err
	}
	predicted, err := interest.Predict(history)
	if err == nil {
		return predicted, true, nil
	}
	if !errors.Is(err, interest.ErrInsufficientHistory) {
		return nil, false, err
	}
	return e.repo.Get(ctx, userID)
}

// Recommend returns up to K items ranked against the user's interest
// vector. Responses are cached per (user, mode, k) and invalidated on
// the user's next applied event; queries run concurrently with updates
// and may observe a slightly stale vector.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	mode := req.Mode.String()

	k := req.K
	if k <= 0 {
		k = e.config.DefaultK
	}
	if k > e.config.MaxK {
		k = e.config.MaxK
	}

	st := e.userState(req.UserID)
	cacheKey := req.UserID + "|" + strconv.FormatUint(st.cacheVersion.Load(), 10) +
		"|" + mode + "|" + strconv.Itoa(k)

	// Exclusion sets vary per request; only cache the common no-exclusion case.
	cacheable := len(req.Exclude) == 0
	if cacheable {
		if cached, ok := e.cache.Get(cacheKey); ok {
			metrics.RecommendCacheHits.Inc()
			resp := *cached
			resp.Metadata.RequestID = req.RequestID
			resp.Metadata.CacheHit = true
			resp.Metadata.LatencyMS = time.Since(start).Milliseconds()
			return &resp, nil
		}
		metrics.RecommendCacheMisses.Inc()
	}

	query, ok, err := e.resolveVector(ctx, req)
	if err != nil {
		metrics.RecommendRequests.WithLabelValues(mode, "error").Inc()
		return nil, err
	}
	if !ok {
		metrics.RecommendRequests.WithLabelValues(mode, "cold_start").Inc()
		return &Response{
			Items:     []ScoredItem{},
			ColdStart: true,
			Metadata:  e.metadata(req, mode, start),
		}, nil
	}

	// Over-fetch so exclusions do not shrink the final result set.
	scanStart := time.Now()
	neighbors, err := e.index.NearestNeighbors(ctx, query, k+len(req.Exclude))
	metrics.NeighborQueryDuration.Observe(time.Since(scanStart).Seconds())
	if err != nil {
		metrics.RecommendRequests.WithLabelValues(mode, "error").Inc()
		return nil, fmt.Errorf("nearest neighbors: %w", err)
	}

	items := make([]ScoredItem, 0, k)
	for _, n := range neighbors {
		if _, skip := req.Exclude[n.ItemID]; skip {
			continue
		}
		items = append(items, ScoredItem{ItemID: n.ItemID, Score: n.Score})
		if len(items) == k {
			break
		}
	}

	resp := &Response{Items: items, Metadata: e.metadata(req, mode, start)}
	if cacheable {
		e.cache.Set(cacheKey, resp)
	}

	metrics.RecommendRequests.WithLabelValues(mode, "ok").Inc()
	metrics.RecommendDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	logger := logging.Ctx(ctx)
	logger.Debug().
		Str("user_id", req.UserID).
		Str("mode", mode).
		Int("k", k).
		Int("results", len(items)).
		Msg("recommendations served")
	return resp, nil
}

// resolveVector picks the query vector per the request mode.
func (e *Engine) resolveVector(ctx context.Context, req Request) (vector.Embedding, bool, error) {
	switch req.Mode {
	case ModeMomentum:
		return e.Predicted(ctx, req.UserID)
	default:
		return e.repo.Get(ctx, req.UserID)
	}
}

func (e *Engine) metadata(req Request, mode string, start time.Time) ResponseMetadata {
	return ResponseMetadata{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		Mode:      mode,
		LatencyMS: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
}
