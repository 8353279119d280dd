// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package eventprocessor

import (
	"errors"
	"testing"
	"time"

	"github.com/mbellwood/affinity/internal/vector"
)

func TestNewInteractionEvent(t *testing.T) {
	ev := NewInteractionEvent("alice", "movie-1", TypeView)

	if ev.EventID == "" {
		t.Error("EventID not generated")
	}
	if ev.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", ev.SchemaVersion, SchemaVersion)
	}
	if ev.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
	if err := ev.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestInteractionEventValidate(t *testing.T) {
	valid := func() *InteractionEvent {
		return &InteractionEvent{
			SchemaVersion: SchemaVersion,
			EventID:       "evt-1",
			UserID:        "alice",
			ItemID:        "movie-1",
			Type:          TypeView,
			Timestamp:     time.Now(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*InteractionEvent)
		wantErr bool
	}{
		{"valid view", func(*InteractionEvent) {}, false},
		{"valid dislike", func(e *InteractionEvent) { e.Type = TypeDislike }, false},
		{"missing event id", func(e *InteractionEvent) { e.EventID = "" }, true},
		{"missing user", func(e *InteractionEvent) { e.UserID = "" }, true},
		{"missing item", func(e *InteractionEvent) { e.ItemID = "" }, true},
		{"bad type", func(e *InteractionEvent) { e.Type = "like" }, true},
		{"zero timestamp", func(e *InteractionEvent) { e.Timestamp = time.Time{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := valid()
			tt.mutate(ev)
			err := ev.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("error %v does not wrap ErrInvalidEvent", err)
			}
		})
	}
}

func TestEnsureSchemaVersion(t *testing.T) {
	ev := &InteractionEvent{}
	ev.EnsureSchemaVersion()
	if ev.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", ev.SchemaVersion, SchemaVersion)
	}

	ev.SchemaVersion = 42
	ev.EnsureSchemaVersion()
	if ev.SchemaVersion != 42 {
		t.Errorf("SchemaVersion = %d, want 42 (existing version preserved)", ev.SchemaVersion)
	}
}

func TestPermanentErrors(t *testing.T) {
	base := errors.New("boom")

	if !IsPermanent(Permanent(base)) {
		t.Error("Permanent(err) not detected by IsPermanent")
	}
	if IsPermanent(base) {
		t.Error("plain error reported as permanent")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if !errors.Is(Permanent(base), base) {
		t.Error("Permanent should wrap the original error")
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	s := NewSerializer()

	ev := NewInteractionEvent("alice", "movie-1", TypeView)
	ev.Embedding = vector.Embedding{0.5, 0.5, 0, 0}
	ev.Source = "api"

	data, err := s.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := s.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.EventID != ev.EventID || got.UserID != ev.UserID || got.Type != ev.Type {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, ev)
	}
	if len(got.Embedding) != len(ev.Embedding) {
		t.Errorf("embedding length = %d, want %d", len(got.Embedding), len(ev.Embedding))
	}
}

func TestSerializerRejectsInvalidEvent(t *testing.T) {
	s := NewSerializer()
	if _, err := s.Marshal(&InteractionEvent{}); err == nil {
		t.Error("Marshal accepted an invalid event")
	}
}

func TestSerializerUpgradesLegacyEvents(t *testing.T) {
	s := NewSerializer()

	// A producer predating schema versioning.
	legacy := []byte(`{"event_id":"e1","user_id":"u","item_id":"i","type":"view","timestamp":"2026-01-02T03:04:05Z"}`)
	ev, err := s.Unmarshal(legacy)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ev.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", ev.SchemaVersion, SchemaVersion)
	}
}

func TestSerializerRejectsBadJSON(t *testing.T) {
	s := NewSerializer()
	if _, err := s.Unmarshal([]byte("{not json")); err == nil {
		t.Error("Unmarshal accepted malformed JSON")
	}
}
