// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

// Package main is the entry point for the Affinity server.
//
// Affinity maintains one interest vector per user in item-embedding
// space, updated online by view and dislike events, and serves
// nearest-neighbor recommendations against an item catalog.
//
// Startup order:
//
//  1. Configuration (Koanf v2: defaults, config.yaml, AFFINITY_* env)
//  2. Logging (zerolog)
//  3. Vector repository (BadgerDB, or in-memory for dev)
//  4. Item catalog index
//  5. NATS JetStream event pipeline (optional, NATS_ENABLED)
//  6. HTTP API (chi)
//  7. Supervision tree (suture) and signal handling
//
// The server shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	badger "github.com/dgraph-io/badger/v4"
	natsgo "github.com/nats-io/nats.go"

	"github.com/mbellwood/affinity/internal/api"
	"github.com/mbellwood/affinity/internal/config"
	"github.com/mbellwood/affinity/internal/embedstore"
	"github.com/mbellwood/affinity/internal/eventprocessor"
	"github.com/mbellwood/affinity/internal/interest"
	"github.com/mbellwood/affinity/internal/logging"
	"github.com/mbellwood/affinity/internal/metrics"
	"github.com/mbellwood/affinity/internal/recommend"
	"github.com/mbellwood/affinity/internal/store"
	"github.com/mbellwood/affinity/internal/supervisor"
	"github.com/mbellwood/affinity/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("store", cfg.Store.Backend).
		Bool("nats", cfg.NATS.Enabled).
		Int("dimension", cfg.Engine.Dimension).
		Msg("starting affinity")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree, err := supervisor.NewTree(logging.Slog(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// Vector repository.
	var repo store.Repository
	switch cfg.Store.Backend {
	case "memory":
		repo = store.NewMemoryStore(cfg.Temporal.MaxHistory)
	default:
		opts := badger.DefaultOptions(cfg.Store.Path).WithLogger(nil)
		db, err := badger.Open(opts)
		if err != nil {
			return fmt.Errorf("open badger at %s: %w", cfg.Store.Path, err)
		}
		defer db.Close()
		repo, err = store.NewBadgerStore(db, cfg.Temporal.MaxHistory)
		if err != nil {
			return fmt.Errorf("create badger store: %w", err)
		}
		tree.AddDataService(services.NewBadgerGCService(db, 0))
	}
	defer repo.Close()

	// Item catalog.
	index := embedstore.NewMemoryIndex(cfg.Engine.Dimension)
	metrics.IndexSize.Set(0)

	engine, err := recommend.NewEngine(recommend.Config{
		Params:            interest.Params{Alpha: cfg.Engine.Alpha, Beta: cfg.Engine.Beta},
		DefaultK:          cfg.Recommend.DefaultK,
		MaxK:              cfg.Recommend.MaxK,
		CacheTTL:          cfg.Recommend.CacheTTL,
		CacheSize:         cfg.Recommend.CacheSize,
		HistoryWindow:     cfg.Temporal.HistoryWindow,
		SnapshotEvery:     cfg.Temporal.SnapshotEvery,
		DislikesPerMinute: cfg.Engine.DislikesPerMinute,
		DislikeBurst:      cfg.Engine.DislikeBurst,
	}, repo, index, logging.Logger())
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	if cfg.NATS.Enabled {
		if err := wireEventPipeline(ctx, cfg, tree, engine, index); err != nil {
			return fmt.Errorf("wire event pipeline: %w", err)
		}
	}

	// HTTP API.
	handler := api.NewHandler(engine, index)
	server := api.NewServer(cfg, api.NewRouter(cfg, handler))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.Timeout))

	logging.Info().Msg("supervision tree starting")
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("shutdown complete")
	return nil
}

// wireEventPipeline sets up the NATS stream, subscriber, and Watermill
// router, supervised in the messaging layer.
func wireEventPipeline(ctx context.Context, cfg *config.Config, tree *supervisor.Tree, engine *recommend.Engine, index *embedstore.MemoryIndex) error {
	logger := eventprocessor.NewLoggerAdapter(logging.Logger())

	url := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		srv, err := eventprocessor.NewEmbeddedServer(eventprocessor.ServerConfigFrom(cfg.NATS))
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		url = srv.ClientURL()
		tree.AddMessagingService(services.NewNATSService(srv))
	}

	// Pre-create the stream so publisher and subscriber can bind to it.
	nc, err := natsgo.Connect(url)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	streams, err := eventprocessor.NewStreamManager(nc, eventprocessor.StreamConfigFrom(cfg.NATS))
	if err != nil {
		nc.Close()
		return err
	}
	if _, err := streams.EnsureStream(ctx); err != nil {
		nc.Close()
		return fmt.Errorf("ensure stream: %w", err)
	}
	nc.Close()

	pubCfg := eventprocessor.PublisherConfigFrom(cfg.NATS)
	pubCfg.URL = url
	poisonPub, err := eventprocessor.NewPublisher(pubCfg, logger)
	if err != nil {
		return fmt.Errorf("create poison publisher: %w", err)
	}

	subCfg := eventprocessor.SubscriberConfigFrom(cfg.NATS)
	subCfg.URL = url
	sub, err := eventprocessor.NewSubscriber(subCfg, logger)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}

	router, err := eventprocessor.NewRouter(eventprocessor.RouterConfigFrom(cfg.NATS), poisonPub, logger)
	if err != nil {
		return fmt.Errorf("create event router: %w", err)
	}
	router.AddEventsHandler("interest-events", cfg.NATS.Topic, sub, eventprocessor.NewEventHandler(engine, index))
	tree.AddMessagingService(services.NewRouterService(router))

	return nil
}
