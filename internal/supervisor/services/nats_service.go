// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package services

import (
	"context"
	"errors"
	"time"

	"github.com/mbellwood/affinity/internal/eventprocessor"
)

// NATSService supervises the embedded NATS server. The server runs its
// own goroutines; this service watches health and shuts it down when
// the tree stops.
type NATSService struct {
	server        *eventprocessor.EmbeddedServer
	checkInterval time.Duration
}

// NewNATSService wraps an already-started embedded server.
func NewNATSService(server *eventprocessor.EmbeddedServer) *NATSService {
	return &NATSService{server: server, checkInterval: 5 * time.Second}
}

// Serve implements suture.Service.
func (n *NATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(n.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := n.server.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return ctx.Err()
		case <-ticker.C:
			if !n.server.IsRunning() {
				return errors.New("embedded NATS server stopped unexpectedly")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (n *NATSService) String() string { return "nats-server" }
