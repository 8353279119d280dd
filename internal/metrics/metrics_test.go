// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordEvent(t *testing.T) {
	before := testutil.ToFloat64(EventsProcessed.WithLabelValues("view", "applied"))
	RecordEvent("view", "applied", 2*time.Millisecond)
	after := testutil.ToFloat64(EventsProcessed.WithLabelValues("view", "applied"))
	if after != before+1 {
		t.Errorf("EventsProcessed = %v, want %v", after, before+1)
	}
}

func TestRecordEvent_NonAppliedSkipsDuration(t *testing.T) {
	// Outcome counting must not require a latency observation.
	before := testutil.ToFloat64(EventsProcessed.WithLabelValues("dislike", "degenerate"))
	RecordEvent("dislike", "degenerate", 0)
	after := testutil.ToFloat64(EventsProcessed.WithLabelValues("dislike", "degenerate"))
	if after != before+1 {
		t.Errorf("EventsProcessed = %v, want %v", after, before+1)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/health", "200"))
	RecordAPIRequest("GET", "/api/v1/health", 200, 5*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/health", "200"))
	if after != before+1 {
		t.Errorf("APIRequestsTotal = %v, want %v", after, before+1)
	}
}

func TestGauges(t *testing.T) {
	IndexSize.Set(42)
	if got := testutil.ToFloat64(IndexSize); got != 42 {
		t.Errorf("IndexSize = %v, want 42", got)
	}
}
