// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package services

import (
	"context"
	"fmt"

	"github.com/mbellwood/affinity/internal/eventprocessor"
)

// RouterService runs the Watermill event router under supervision. A
// router crash restarts consumption; JetStream redelivers anything
// unacked.
type RouterService struct {
	router *eventprocessor.Router
}

// NewRouterService wraps router.
func NewRouterService(router *eventprocessor.Router) *RouterService {
	return &RouterService{router: router}
}

// Serve implements suture.Service.
func (r *RouterService) Serve(ctx context.Context) error {
	if err := r.router.Run(ctx); err != nil {
		return fmt.Errorf("event router failed: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (r *RouterService) String() string { return "event-router" }
