// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

package eventprocessor

import (
	"strings"
	"time"

	"github.com/mbellwood/affinity/internal/config"
)

// PublisherConfig tunes the NATS publisher.
type PublisherConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectBuffer int

	// TrackMsgID enables JetStream deduplication keyed on message UUID.
	TrackMsgID bool
}

// SubscriberConfig tunes the durable JetStream consumer.
type SubscriberConfig struct {
	URL              string
	QueueGroup       string
	DurableName      string
	StreamName       string
	SubscribersCount int
	MaxDeliver       int
	MaxAckPending    int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration
}

// StreamConfig describes the JetStream stream holding interaction
// events.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// ServerConfig tunes the embedded NATS server.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// RouterConfig tunes the Watermill router middleware.
type RouterConfig struct {
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64
	PoisonTopic          string
}

// streamNameFor derives a JetStream stream name from a topic. Stream
// names cannot contain dots.
func streamNameFor(topic string) string {
	return strings.ToUpper(strings.ReplaceAll(topic, ".", "_"))
}

// PublisherConfigFrom maps the application config onto publisher
// settings.
func PublisherConfigFrom(cfg config.NATSConfig) PublisherConfig {
	return PublisherConfig{
		URL:             cfg.URL,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024,
		TrackMsgID:      true,
	}
}

// SubscriberConfigFrom maps the application config onto subscriber
// settings.
func SubscriberConfigFrom(cfg config.NATSConfig) SubscriberConfig {
	return SubscriberConfig{
		URL:              cfg.URL,
		QueueGroup:       cfg.QueueGroup,
		DurableName:      cfg.DurableName,
		StreamName:       streamNameFor(cfg.Topic),
		SubscribersCount: 4,
		MaxDeliver:       cfg.RetryCount + 1,
		MaxAckPending:    1024,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     cfg.CloseTimeout,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// StreamConfigFrom maps the application config onto the stream
// definition. The poison topic lives on the same stream.
func StreamConfigFrom(cfg config.NATSConfig) StreamConfig {
	return StreamConfig{
		Name:            streamNameFor(cfg.Topic),
		Subjects:        []string{cfg.Topic, cfg.PoisonTopic},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        1 << 30,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// ServerConfigFrom maps the application config onto embedded server
// settings.
func ServerConfigFrom(cfg config.NATSConfig) ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          cfg.StoreDir,
		JetStreamMaxMem:   256 << 20,
		JetStreamMaxStore: 8 << 30,
	}
}

// RouterConfigFrom maps the application config onto router middleware
// settings.
func RouterConfigFrom(cfg config.NATSConfig) RouterConfig {
	return RouterConfig{
		CloseTimeout:         cfg.CloseTimeout,
		RetryMaxRetries:      cfg.RetryCount,
		RetryInitialInterval: cfg.RetryInitialInterval,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		PoisonTopic:          cfg.PoisonTopic,
	}
}
