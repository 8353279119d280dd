// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mbellwood/affinity/internal/vector"
)

// SchemaVersion is the current event schema version. Increment on
// breaking changes to InteractionEvent.
const SchemaVersion = 1

// Event types accepted on the wire.
const (
	TypeView    = "view"
	TypeDislike = "dislike"
)

// InteractionEvent is the canonical wire format for one user/item
// interaction. Embedding is optional; when absent the consumer resolves
// it from the item catalog.
type InteractionEvent struct {
	SchemaVersion int `json:"schema_version,omitempty"`

	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Embedding vector.Embedding `json:"embedding,omitempty"`

	// Source labels the producer (api, backfill, simulator).
	Source string `json:"source,omitempty"`
}

// NewInteractionEvent creates an event with a unique ID, timestamp, and
// the current schema version.
func NewInteractionEvent(userID, itemID, eventType string) *InteractionEvent {
	return &InteractionEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		UserID:        userID,
		ItemID:        itemID,
		Type:          eventType,
		Timestamp:     time.Now().UTC(),
	}
}

// EnsureSchemaVersion sets the version on events from producers that
// predate explicit versioning.
func (e *InteractionEvent) EnsureSchemaVersion() {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
}

// Validate checks required fields.
func (e *InteractionEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("%w: event_id is required", ErrInvalidEvent)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidEvent)
	}
	if e.ItemID == "" {
		return fmt.Errorf("%w: item_id is required", ErrInvalidEvent)
	}
	if e.Type != TypeView && e.Type != TypeDislike {
		return fmt.Errorf("%w: type must be %q or %q, got %q", ErrInvalidEvent, TypeView, TypeDislike, e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidEvent)
	}
	return nil
}
