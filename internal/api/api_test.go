// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/mbellwood/affinity/internal/config"
	"github.com/mbellwood/affinity/internal/embedstore"
	"github.com/mbellwood/affinity/internal/interest"
	"github.com/mbellwood/affinity/internal/recommend"
	"github.com/mbellwood/affinity/internal/store"
)

const testDim = 4

func newTestServer(t *testing.T) (*httptest.Server, *embedstore.MemoryIndex) {
	t.Helper()

	index := embedstore.NewMemoryIndex(testDim)
	engine, err := recommend.NewEngine(recommend.Config{
		Params: interest.Params{Alpha: 0.5, Beta: 0.5},
	}, store.NewMemoryStore(100), index, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Timeout: 10 * time.Second},
		API:    config.APIConfig{RateLimitReqs: 1000, RateLimitWindow: time.Minute},
	}
	srv := httptest.NewServer(NewRouter(cfg, NewHandler(engine, index)))
	t.Cleanup(srv.Close)
	return srv, index
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func seedItems(t *testing.T, baseURL string, embeddings map[string][]float64) {
	t.Helper()
	for id, emb := range embeddings {
		resp, body := doJSON(t, http.MethodPost, baseURL+"/api/v1/items", map[string]any{
			"id":        id,
			"embedding": emb,
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed item %s: status %d body %v", id, resp.StatusCode, body)
		}
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestPostEventUpdatesInterest(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/events", map[string]any{
		"user_id":   "alice",
		"item_id":   "movie-1",
		"type":      "view",
		"embedding": []float64{3, 0, 0, 0},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %v", resp.StatusCode, body)
	}
	vec, ok := body["vector"].([]any)
	if !ok || len(vec) != testDim {
		t.Fatalf("vector = %v, want %d-dim array", body["vector"], testDim)
	}
	// Cold start normalizes the item embedding.
	if got := vec[0].(float64); got < 0.999 || got > 1.001 {
		t.Errorf("vector[0] = %v, want 1", got)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/alice/interest", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("interest status = %d, want 200", resp.StatusCode)
	}
	if body["cold_start"] != false {
		t.Errorf("cold_start = %v, want false", body["cold_start"])
	}
}

func TestPostEventResolvesCatalogEmbedding(t *testing.T) {
	srv, _ := newTestServer(t)
	seedItems(t, srv.URL, map[string][]float64{"movie-1": {0, 2, 0, 0}})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/events", map[string]any{
		"user_id": "bob",
		"item_id": "movie-1",
		"type":    "view",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %v", resp.StatusCode, body)
	}
	vec := body["vector"].([]any)
	if got := vec[1].(float64); got < 0.999 || got > 1.001 {
		t.Errorf("vector[1] = %v, want 1 (normalized catalog embedding)", got)
	}
}

func TestPostEventUnknownItem(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/events", map[string]any{
		"user_id": "carol",
		"item_id": "ghost",
		"type":    "view",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	errObj := body["error"].(map[string]any)
	if errObj["code"] != CodeUnknownItem {
		t.Errorf("code = %v, want %s", errObj["code"], CodeUnknownItem)
	}
}

func TestPostEventValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing user", map[string]any{"item_id": "x", "type": "view"}},
		{"missing item", map[string]any{"user_id": "u", "type": "view"}},
		{"bad type", map[string]any{"user_id": "u", "item_id": "x", "type": "like"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/events", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body %v", resp.StatusCode, body)
			}
			errObj := body["error"].(map[string]any)
			if errObj["code"] != CodeValidation {
				t.Errorf("code = %v, want %s", errObj["code"], CodeValidation)
			}
		})
	}
}

func TestPostEventDimensionMismatch(t *testing.T) {
	srv, _ := newTestServer(t)

	// First event fixes the user's dimensionality.
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/events", map[string]any{
		"user_id": "dave", "item_id": "a", "type": "view",
		"embedding": []float64{1, 0, 0, 0},
	})
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/events", map[string]any{
		"user_id": "dave", "item_id": "b", "type": "view",
		"embedding": []float64{1, 0},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %v", resp.StatusCode, body)
	}
	errObj := body["error"].(map[string]any)
	if errObj["code"] != CodeDimensionError {
		t.Errorf("code = %v, want %s", errObj["code"], CodeDimensionError)
	}
}

func TestGetInterestColdStart(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/nobody/interest", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (cold start is not an error)", resp.StatusCode)
	}
	if body["cold_start"] != true {
		t.Errorf("cold_start = %v, want true", body["cold_start"])
	}
	if _, present := body["vector"]; present {
		t.Errorf("vector should be omitted for cold start, got %v", body["vector"])
	}
}

func TestItemLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	seedItems(t, srv.URL, map[string][]float64{"movie-1": {1, 1, 0, 0}})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/items/movie-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["id"] != "movie-1" {
		t.Errorf("id = %v, want movie-1", body["id"])
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/items/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown item status = %d, want 404", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/items", map[string]any{
		"id": "zero", "embedding": []float64{0, 0, 0, 0},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("zero embedding status = %d, want 422, body %v", resp.StatusCode, body)
	}
}

func TestRecommendations(t *testing.T) {
	srv, _ := newTestServer(t)
	seedItems(t, srv.URL, map[string][]float64{
		"east":  {1, 0, 0, 0},
		"north": {0, 1, 0, 0},
		"mixed": {1, 1, 0, 0},
	})

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/events", map[string]any{
		"user_id": "erin", "item_id": "east", "type": "view",
	})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/erin/recommendations?k=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %v", resp.StatusCode, body)
	}
	items := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	first := items[0].(map[string]any)
	if first["item_id"] != "east" {
		t.Errorf("top item = %v, want east", first["item_id"])
	}

	// Exclusion removes the top item without shrinking the result set.
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/erin/recommendations?k=2&exclude=east", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("exclude status = %d, want 200", resp.StatusCode)
	}
	items = body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2 after exclusion", len(items))
	}
	for _, it := range items {
		if it.(map[string]any)["item_id"] == "east" {
			t.Error("excluded item present in results")
		}
	}
}

func TestRecommendationsColdStart(t *testing.T) {
	srv, _ := newTestServer(t)
	seedItems(t, srv.URL, map[string][]float64{"east": {1, 0, 0, 0}})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/nobody/recommendations", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["cold_start"] != true {
		t.Errorf("cold_start = %v, want true", body["cold_start"])
	}
	if items := body["items"].([]any); len(items) != 0 {
		t.Errorf("items = %v, want empty", items)
	}
}

func TestRecommendationsBadParams(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, q := range []string{"k=zero", "k=-1", "mode=psychic"} {
		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/u/recommendations?"+q, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestMomentumMode(t *testing.T) {
	srv, _ := newTestServer(t)
	seedItems(t, srv.URL, map[string][]float64{
		"east":  {1, 0, 0, 0},
		"north": {0, 1, 0, 0},
	})

	// SnapshotEvery defaults to 5; drift the user from east toward
	// north across enough events to record multiple snapshots.
	for i := 0; i < 5; i++ {
		doJSON(t, http.MethodPost, srv.URL+"/api/v1/events", map[string]any{
			"user_id": "frank", "item_id": "east", "type": "view",
		})
	}
	for i := 0; i < 10; i++ {
		doJSON(t, http.MethodPost, srv.URL+"/api/v1/events", map[string]any{
			"user_id": "frank", "item_id": "north", "type": "view",
		})
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/frank/predicted", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("predicted status = %d, want 200, body %v", resp.StatusCode, body)
	}
	if body["cold_start"] != false {
		t.Fatalf("cold_start = %v, want false", body["cold_start"])
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/users/frank/recommendations?mode=momentum", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("momentum status = %d, want 200, body %v", resp.StatusCode, body)
	}
	items := body["items"].([]any)
	if len(items) == 0 {
		t.Fatal("momentum recommendations empty")
	}
	if got := items[0].(map[string]any)["item_id"]; got != "north" {
		t.Errorf("momentum top item = %v, want north", got)
	}
}

func TestRouteRateLimit(t *testing.T) {
	index := embedstore.NewMemoryIndex(testDim)
	engine, err := recommend.NewEngine(recommend.Config{
		Params: interest.Params{Alpha: 0.5, Beta: 0.5},
	}, store.NewMemoryStore(100), index, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	cfg := &config.Config{
		Server: config.ServerConfig{Timeout: 10 * time.Second},
		API:    config.APIConfig{RateLimitReqs: 3, RateLimitWindow: time.Minute},
	}
	srv := httptest.NewServer(NewRouter(cfg, NewHandler(engine, index)))
	defer srv.Close()

	var limited bool
	for i := 0; i < 10; i++ {
		resp, err := http.Get(srv.URL + "/api/v1/health")
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("rate limiter never triggered")
	}
}

func TestBadJSONBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json",
		bytes.NewBufferString("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	} {
		if got := resp.Header.Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
