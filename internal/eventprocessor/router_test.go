// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package eventprocessor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/mbellwood/affinity/internal/embedstore"
	"github.com/mbellwood/affinity/internal/interest"
	"github.com/mbellwood/affinity/internal/recommend"
	"github.com/mbellwood/affinity/internal/store"
	"github.com/mbellwood/affinity/internal/vector"
)

const (
	testTopic       = "interest.events"
	testPoisonTopic = "interest.events.poison"
)

func testRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         5 * time.Second,
		RetryMaxRetries:      2,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     10 * time.Millisecond,
		RetryMultiplier:      2.0,
		PoisonTopic:          testPoisonTopic,
	}
}

func newTestEngine(t *testing.T) (*recommend.Engine, *embedstore.MemoryIndex) {
	t.Helper()
	index := embedstore.NewMemoryIndex(4)
	engine, err := recommend.NewEngine(recommend.Config{
		Params: interest.Params{Alpha: 0.5, Beta: 0.5},
	}, store.NewMemoryStore(100), index, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine, index
}

// runPipeline starts a gochannel-backed router with the given handler
// and returns the pubsub plus a cancel that waits for shutdown.
func runPipeline(t *testing.T, handler *EventHandler) *gochannel.GoChannel {
	t.Helper()

	logger := watermill.NopLogger{}
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, logger)

	router, err := NewRouter(testRouterConfig(), pubsub, logger)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	router.AddEventsHandler("interest-events", testTopic, pubsub, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := router.Run(ctx); err != nil {
			t.Errorf("router.Run: %v", err)
		}
	}()
	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return pubsub
}

func publishEvent(t *testing.T, pub message.Publisher, ev *InteractionEvent) {
	t.Helper()
	data, err := NewSerializer().Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if err := pub.Publish(testTopic, message.NewMessage(ev.EventID, data)); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPipelineAppliesEvent(t *testing.T) {
	engine, index := newTestEngine(t)
	pubsub := runPipeline(t, NewEventHandler(engine, index))

	ev := NewInteractionEvent("alice", "movie-1", TypeView)
	ev.Embedding = vector.Embedding{2, 0, 0, 0}
	publishEvent(t, pubsub, ev)

	waitFor(t, 5*time.Second, func() bool {
		_, ok, err := engine.Interest(context.Background(), "alice")
		return err == nil && ok
	})

	vec, _, err := engine.Interest(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Interest: %v", err)
	}
	if vec[0] < 0.999 {
		t.Errorf("vector = %v, want unit east", vec)
	}
}

func TestPipelineResolvesCatalogEmbedding(t *testing.T) {
	engine, index := newTestEngine(t)
	if err := index.Upsert(context.Background(), embedstore.Item{
		ID: "movie-1", Embedding: vector.Embedding{0, 3, 0, 0},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	pubsub := runPipeline(t, NewEventHandler(engine, index))

	publishEvent(t, pubsub, NewInteractionEvent("bob", "movie-1", TypeView))

	waitFor(t, 5*time.Second, func() bool {
		_, ok, _ := engine.Interest(context.Background(), "bob")
		return ok
	})
}

func TestPipelinePoisonsInvalidPayload(t *testing.T) {
	engine, index := newTestEngine(t)
	pubsub := runPipeline(t, NewEventHandler(engine, index))

	poisoned, err := pubsub.Subscribe(context.Background(), testPoisonTopic)
	if err != nil {
		t.Fatalf("subscribe poison: %v", err)
	}

	if err := pubsub.Publish(testTopic, message.NewMessage("bad-1", []byte("{not json"))); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-poisoned:
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("invalid payload never reached the poison topic")
	}
}

func TestPipelinePoisonsUnknownItemWithoutRetry(t *testing.T) {
	engine, index := newTestEngine(t)
	counting := &countingStore{Store: index}
	pubsub := runPipeline(t, NewEventHandler(engine, counting))

	poisoned, err := pubsub.Subscribe(context.Background(), testPoisonTopic)
	if err != nil {
		t.Fatalf("subscribe poison: %v", err)
	}

	publishEvent(t, pubsub, NewInteractionEvent("carol", "ghost", TypeView))

	select {
	case msg := <-poisoned:
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("unknown-item event never reached the poison topic")
	}
	if got := counting.lookups.Load(); got != 1 {
		t.Errorf("catalog lookups = %d, want 1 (permanent failures skip retries)", got)
	}
}

func TestPipelineRetriesTransientFailures(t *testing.T) {
	engine, index := newTestEngine(t)
	flaky := &flakyStore{Store: index, failures: 2}
	if err := index.Upsert(context.Background(), embedstore.Item{
		ID: "movie-1", Embedding: vector.Embedding{1, 0, 0, 0},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	pubsub := runPipeline(t, NewEventHandler(engine, flaky))

	publishEvent(t, pubsub, NewInteractionEvent("dave", "movie-1", TypeView))

	waitFor(t, 5*time.Second, func() bool {
		_, ok, _ := engine.Interest(context.Background(), "dave")
		return ok
	})
	if got := flaky.attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (two failures, one success)", got)
	}
}

// countingStore counts GetEmbedding calls.
type countingStore struct {
	embedstore.Store
	lookups atomic.Int64
}

func (c *countingStore) GetEmbedding(ctx context.Context, itemID string) (vector.Embedding, error) {
	c.lookups.Add(1)
	return c.Store.GetEmbedding(ctx, itemID)
}

// flakyStore fails the first N GetEmbedding calls with a transient
// error.
type flakyStore struct {
	embedstore.Store
	failures int64
	attempts atomic.Int64
}

func (f *flakyStore) GetEmbedding(ctx context.Context, itemID string) (vector.Embedding, error) {
	if f.attempts.Add(1) <= f.failures {
		return nil, errors.New("transient backend failure")
	}
	return f.Store.GetEmbedding(ctx, itemID)
}
