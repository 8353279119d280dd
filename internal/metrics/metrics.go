// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

// Package metrics exposes Prometheus instrumentation for:
//   - interaction event processing (throughput, failures, update latency)
//   - recommendation queries (latency, result sizes, cache efficiency)
//   - repository and similarity-index operations
//   - API endpoint latency and throughput
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event pipeline metrics

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_events_processed_total",
			Help: "Total interaction events processed, by type and outcome",
		},
		[]string{"event_type", "outcome"}, // outcome: applied, degenerate, mismatch, rate_limited, error
	)

	EventUpdateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_event_update_duration_seconds",
			Help:    "Duration of interest vector updates including storage",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"event_type"},
	)

	SnapshotsAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinity_snapshots_appended_total",
			Help: "Total interest snapshots appended to user histories",
		},
	)

	// Recommendation metrics

	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_recommend_requests_total",
			Help: "Total recommendation requests, by mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: ok, cold_start, error
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_recommend_duration_seconds",
			Help:    "End-to-end recommendation query latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	RecommendCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinity_recommend_cache_hits_total",
			Help: "Recommendation responses served from cache",
		},
	)

	RecommendCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "affinity_recommend_cache_misses_total",
			Help: "Recommendation requests that missed the cache",
		},
	)

	// Storage metrics

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_store_operations_total",
			Help: "Repository operations, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "affinity_index_items",
			Help: "Current number of items in the embedding index",
		},
	)

	NeighborQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "affinity_neighbor_query_duration_seconds",
			Help:    "Similarity-index nearest-neighbor scan latency",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "affinity_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "affinity_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEvent records one processed interaction event.
func RecordEvent(eventType, outcome string, duration time.Duration) {
	EventsProcessed.WithLabelValues(eventType, outcome).Inc()
	if outcome == "applied" {
		EventUpdateDuration.WithLabelValues(eventType).Observe(duration.Seconds())
	}
}
