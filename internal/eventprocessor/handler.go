// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package eventprocessor

import (
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/mbellwood/affinity/internal/embedstore"
	"github.com/mbellwood/affinity/internal/interest"
	"github.com/mbellwood/affinity/internal/logging"
	"github.com/mbellwood/affinity/internal/recommend"
	"github.com/mbellwood/affinity/internal/vector"
)

// EventHandler consumes interaction events and applies them to user
// interest vectors, mirroring the synchronous HTTP ingestion path.
type EventHandler struct {
	engine     *recommend.Engine
	catalog    embedstore.Store
	serializer *Serializer
}

// NewEventHandler creates a handler over the engine and item catalog.
func NewEventHandler(engine *recommend.Engine, catalog embedstore.Store) *EventHandler {
	return &EventHandler{
		engine:     engine,
		catalog:    catalog,
		serializer: NewSerializer(),
	}
}

// Handle processes one message. Returning nil acks; a plain error
// triggers the router's retry middleware; a Permanent error skips
// retries and routes to the poison topic.
func (h *EventHandler) Handle(msg *message.Message) error {
	ctx := msg.Context()

	event, err := h.serializer.Unmarshal(msg.Payload)
	if err != nil {
		return Permanent(fmt.Errorf("message %s: %w", msg.UUID, err))
	}
	if err := event.Validate(); err != nil {
		return Permanent(fmt.Errorf("message %s: %w", msg.UUID, err))
	}

	emb := event.Embedding
	if len(emb) == 0 {
		emb, err = h.catalog.GetEmbedding(ctx, event.ItemID)
		if errors.Is(err, embedstore.ErrUnknownItem) {
			// The item will not appear by retrying the same message.
			return Permanent(fmt.Errorf("event %s: %w", event.EventID, err))
		}
		if err != nil {
			// Catalog lookup may be transient (remote store, open breaker).
			return fmt.Errorf("event %s: embedding lookup: %w", event.EventID, err)
		}
	}

	evType := interest.EventView
	if event.Type == TypeDislike {
		evType = interest.EventDislike
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err = h.engine.ApplyEvent(ctx, event.UserID, interest.Event{
		Type:          evType,
		ItemID:        event.ItemID,
		ItemEmbedding: emb,
		Timestamp:     ts,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, recommend.ErrRateLimited):
		// Rate-limited dislikes are dropped, not redelivered: the limiter
		// exists to discard bursts, and redelivery would defeat it.
		logger := logging.Ctx(ctx)
		logger.Debug().
			Str("event_id", event.EventID).
			Str("user_id", event.UserID).
			Msg("dislike dropped by rate limiter")
		return nil
	case errors.Is(err, vector.ErrDegenerateVector), errors.Is(err, vector.ErrDimensionMismatch):
		return Permanent(fmt.Errorf("event %s: %w", event.EventID, err))
	default:
		return fmt.Errorf("event %s: %w", event.EventID, err)
	}
}
