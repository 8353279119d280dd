// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbellwood/affinity/internal/config"
)

// NewRouter builds the chi router with the full middleware stack and
// all API routes mounted under /api/v1.
func NewRouter(cfg *config.Config, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Server.Timeout))
	r.Use(SecurityHeaders)

	if len(cfg.API.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.API.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Use(httprate.Limit(
		cfg.API.RateLimitReqs,
		cfg.API.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusTooManyRequests, CodeRateLimited, "request rate limit exceeded", nil)
		}),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(Instrument("/api/v1/health")).Get("/health", h.Health)

		r.With(Instrument("/api/v1/events")).Post("/events", h.PostEvent)

		r.Route("/items", func(r chi.Router) {
			r.With(Instrument("/api/v1/items")).Post("/", h.PostItem)
			r.With(Instrument("/api/v1/items/{id}")).Get("/{id}", h.GetItem)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.With(Instrument("/api/v1/users/{id}/interest")).Get("/interest", h.GetInterest)
			r.With(Instrument("/api/v1/users/{id}/predicted")).Get("/predicted", h.GetPredicted)
			r.With(Instrument("/api/v1/users/{id}/recommendations")).Get("/recommendations", h.GetRecommendations)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, CodeValidation, "unknown route", nil)
	})

	return r
}

// NewServer wraps the router in an http.Server with sane timeouts.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
}
