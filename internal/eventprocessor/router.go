// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// Router wraps the Watermill router with the middleware stack the
// pipeline needs: panic recovery, retry with exponential backoff for
// transient failures, and poison-topic routing for messages that are
// permanently invalid or exhaust their retries.
type Router struct {
	router *message.Router
	config RouterConfig
	logger watermill.LoggerAdapter
}

// NewRouter creates a router. poisonPublisher receives failed messages
// on cfg.PoisonTopic.
func NewRouter(cfg RouterConfig, poisonPublisher message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	if poisonPublisher == nil {
		return nil, fmt.Errorf("poison publisher is required")
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	poison, err := middleware.PoisonQueue(poisonPublisher, cfg.PoisonTopic)
	if err != nil {
		return nil, fmt.Errorf("create poison queue: %w", err)
	}

	// Order matters: poison sees errors after retries are spent,
	// recovery turns handler panics into errors before anything else.
	wmRouter.AddMiddleware(
		poison,
		retryTransient(cfg, logger),
		middleware.Recoverer,
	)

	return &Router{router: wmRouter, config: cfg, logger: logger}, nil
}

// retryTransient retries failed handlers with exponential backoff.
// Permanent errors pass through immediately so the poison middleware
// takes them without redelivery churn.
func retryTransient(cfg RouterConfig, logger watermill.LoggerAdapter) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			interval := cfg.RetryInitialInterval
			var lastErr error
			for attempt := 0; ; attempt++ {
				msgs, err := h(msg)
				if err == nil {
					return msgs, nil
				}
				if IsPermanent(err) {
					logger.Error("permanent failure, poisoning message", err, watermill.LogFields{
						"message_uuid": msg.UUID,
					})
					return nil, err
				}
				lastErr = err
				if attempt >= cfg.RetryMaxRetries {
					break
				}
				logger.Info("handler failed, retrying", watermill.LogFields{
					"message_uuid": msg.UUID,
					"attempt":      attempt + 1,
					"wait":         interval.String(),
					"error":        err.Error(),
				})
				select {
				case <-msg.Context().Done():
					return nil, msg.Context().Err()
				case <-time.After(interval):
				}
				interval = time.Duration(float64(interval) * cfg.RetryMultiplier)
				if interval > cfg.RetryMaxInterval {
					interval = cfg.RetryMaxInterval
				}
			}
			return nil, fmt.Errorf("retries exhausted: %w", lastErr)
		}
	}
}

// AddEventsHandler subscribes handler to topic.
func (r *Router) AddEventsHandler(name, topic string, subscriber message.Subscriber, handler *EventHandler) {
	r.router.AddNoPublisherHandler(name, topic, subscriber, handler.Handle)
}

// Run starts the router and blocks until ctx is cancelled or the
// router fails. It is safe to call handlers only after Running is
// closed.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel closed once all handlers are started.
func (r *Router) Running() <-chan struct{} {
	return r.router.Running()
}

// Close gracefully stops the router.
func (r *Router) Close() error {
	return r.router.Close()
}
