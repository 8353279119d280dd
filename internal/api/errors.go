// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/mbellwood/affinity/internal/logging"
)

// Error codes returned in the API error envelope.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeBadJSON          = "INVALID_JSON"
	CodeUnknownItem      = "UNKNOWN_ITEM"
	CodeDimensionError   = "DIMENSION_MISMATCH"
	CodeDegenerateVector = "DEGENERATE_VECTOR"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
)

// APIError is the error envelope returned by every failing endpoint.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// respondJSON writes v as a JSON body with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("marshal response failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("write response failed")
	}
}

// respondError writes the error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details any) {
	respondJSON(w, status, errorResponse{Error: APIError{Code: code, Message: message, Details: details}})
}
