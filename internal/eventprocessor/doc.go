// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

// Package eventprocessor implements the asynchronous ingestion path:
// interaction events published to NATS JetStream are consumed by a
// Watermill router and applied to user interest vectors.
//
// The pipeline mirrors the HTTP /events endpoint semantics. Events that
// keep failing after retries are routed to a poison topic instead of
// blocking the stream; permanently invalid events (bad schema, unknown
// item, degenerate update) skip retries entirely.
//
// An embedded NATS server is available for single-binary deployments;
// production multi-instance setups point at an external cluster and
// share a queue group for load balancing.
package eventprocessor
