// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

// Package api provides the HTTP surface for Affinity: interaction event
// ingestion, catalog management, interest vector reads, and
// recommendation queries.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/mbellwood/affinity/internal/embedstore"
	"github.com/mbellwood/affinity/internal/interest"
	"github.com/mbellwood/affinity/internal/logging"
	"github.com/mbellwood/affinity/internal/metrics"
	"github.com/mbellwood/affinity/internal/recommend"
	"github.com/mbellwood/affinity/internal/validation"
	"github.com/mbellwood/affinity/internal/vector"
)

// Handler implements the API endpoints.
type Handler struct {
	engine    *recommend.Engine
	index     *embedstore.MemoryIndex
	startedAt time.Time
}

// NewHandler creates a Handler over the engine and catalog index.
func NewHandler(engine *recommend.Engine, index *embedstore.MemoryIndex) *Handler {
	return &Handler{engine: engine, index: index, startedAt: time.Now()}
}

// decodeJSON reads the request body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, CodeBadJSON, "request body is not valid JSON", err.Error())
		return false
	}
	return true
}

// validateRequest runs struct validation and writes the envelope on
// failure.
func validateRequest(w http.ResponseWriter, req any) bool {
	err := validation.ValidateStruct(req)
	if err == nil {
		return true
	}
	var ve *validation.RequestValidationError
	if errors.As(err, &ve) {
		respondError(w, http.StatusBadRequest, CodeValidation, "request validation failed", ve.Fields)
	} else {
		respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	}
	return false
}

// healthResponse is the health endpoint body.
type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	CatalogItems  int    `json:"catalog_items"`
}

// Health reports liveness and basic counters.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CatalogItems:  h.index.Len(),
	})
}

// eventRequest is the interaction event ingestion body. Embedding is
// optional; when omitted the item must already exist in the catalog.
type eventRequest struct {
	UserID    string    `json:"user_id" validate:"required,max=128"`
	ItemID    string    `json:"item_id" validate:"required,max=128"`
	Type      string    `json:"type" validate:"required,oneof=view dislike"`
	Embedding []float64 `json:"embedding,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// eventResponse returns the updated interest vector.
type eventResponse struct {
	UserID string           `json:"user_id"`
	Vector vector.Embedding `json:"vector"`
}

// PostEvent applies one view/dislike event to the user's vector.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	emb := vector.Embedding(req.Embedding)
	if len(emb) == 0 {
		var err error
		emb, err = h.index.GetEmbedding(r.Context(), req.ItemID)
		if errors.Is(err, embedstore.ErrUnknownItem) {
			respondError(w, http.StatusNotFound, CodeUnknownItem, "item is not in the catalog and no embedding was supplied", req.ItemID)
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, CodeInternal, "embedding lookup failed", nil)
			return
		}
	}

	evType := interest.EventView
	if req.Type == "dislike" {
		evType = interest.EventDislike
	}
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	next, err := h.engine.ApplyEvent(r.Context(), req.UserID, interest.Event{
		Type:          evType,
		ItemID:        req.ItemID,
		ItemEmbedding: emb,
		Timestamp:     ts,
	})
	if err != nil {
		switch {
		case errors.Is(err, vector.ErrDimensionMismatch):
			respondError(w, http.StatusUnprocessableEntity, CodeDimensionError, "embedding dimensionality does not match the stored vector", nil)
		case errors.Is(err, vector.ErrDegenerateVector):
			respondError(w, http.StatusUnprocessableEntity, CodeDegenerateVector, "update produced a degenerate vector; stored vector unchanged", nil)
		case errors.Is(err, recommend.ErrRateLimited):
			respondError(w, http.StatusTooManyRequests, CodeRateLimited, "dislike rate limit exceeded for this user", nil)
		default:
			logger := logging.Ctx(r.Context())
			logger.Error().Err(err).Msg("event apply failed")
			respondError(w, http.StatusInternalServerError, CodeInternal, "event could not be applied", nil)
		}
		return
	}

	respondJSON(w, http.StatusOK, eventResponse{UserID: req.UserID, Vector: next})
}

// itemRequest is the catalog upsert body.
type itemRequest struct {
	ID        string            `json:"id" validate:"required,max=128"`
	Embedding []float64         `json:"embedding" validate:"required,min=1"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PostItem upserts a catalog item embedding.
func (h *Handler) PostItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}

	err := h.index.Upsert(r.Context(), embedstore.Item{
		ID:        req.ID,
		Embedding: vector.Embedding(req.Embedding),
		Metadata:  req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, vector.ErrDimensionMismatch):
			respondError(w, http.StatusUnprocessableEntity, CodeDimensionError, "embedding dimensionality does not match the index", nil)
		case errors.Is(err, vector.ErrDegenerateVector):
			respondError(w, http.StatusUnprocessableEntity, CodeDegenerateVector, "item embedding is (near-)zero", nil)
		default:
			respondError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		}
		return
	}

	metrics.IndexSize.Set(float64(h.index.Len()))
	respondJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// GetItem returns one catalog item with its normalized embedding.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	item, err := h.index.GetItem(r.Context(), itemID)
	if errors.Is(err, embedstore.ErrUnknownItem) {
		respondError(w, http.StatusNotFound, CodeUnknownItem, "item not found", itemID)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "item lookup failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// interestResponse carries a user's vector. ColdStart is true and
// Vector null for users with no recorded interaction: that state is a
// valid result, not an error.
type interestResponse struct {
	UserID    string           `json:"user_id"`
	Vector    vector.Embedding `json:"vector,omitempty"`
	ColdStart bool             `json:"cold_start"`
	Predicted bool             `json:"predicted,omitempty"`
}

// GetInterest returns the user's current interest vector.
func (h *Handler) GetInterest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	vec, ok, err := h.engine.Interest(r.Context(), userID)
	if err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Msg("interest read failed")
		respondError(w, http.StatusInternalServerError, CodeInternal, "interest vector read failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, interestResponse{UserID: userID, Vector: vec, ColdStart: !ok})
}

// GetPredicted returns the momentum-extrapolated vector, falling back
// to the current vector when history is too short.
func (h *Handler) GetPredicted(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	vec, ok, err := h.engine.Predicted(r.Context(), userID)
	if err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Msg("prediction failed")
		respondError(w, http.StatusInternalServerError, CodeInternal, "prediction failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, interestResponse{UserID: userID, Vector: vec, ColdStart: !ok, Predicted: ok})
}

// recommendationsQuery holds the parsed query parameters.
type recommendationsQuery struct {
	K    int    `validate:"omitempty,min=1"`
	Mode string `validate:"omitempty,oneof=current momentum"`
}

// GetRecommendations returns ranked items for the user.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	q := recommendationsQuery{Mode: r.URL.Query().Get("mode")}
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, CodeValidation, "k must be an integer", raw)
			return
		}
		q.K = k
	}
	if !validateRequest(w, &q) {
		return
	}

	mode := recommend.ModeCurrent
	if q.Mode == "momentum" {
		mode = recommend.ModeMomentum
	}

	var exclude map[string]struct{}
	if raw := r.URL.Query().Get("exclude"); raw != "" {
		exclude = make(map[string]struct{})
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				exclude[id] = struct{}{}
			}
		}
	}

	resp, err := h.engine.Recommend(r.Context(), recommend.Request{
		UserID:    userID,
		K:         q.K,
		Mode:      mode,
		Exclude:   exclude,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Msg("recommendation failed")
		respondError(w, http.StatusInternalServerError, CodeInternal, "recommendation failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
