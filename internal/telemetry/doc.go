// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records per-turn statistics in a local SQLite database.
//
// Every finished turn (completed, failed or cancelled) becomes one row
// holding the model id, outcome, fragment count, reply length, estimated
// conversation tokens, duration and any error text. Aggregates per model
// and per day back the `lmchat stats` command.
//
// # Usage
//
//	store, err := telemetry.Open(path, logger)
//	if err != nil { ... }
//	defer store.Close()
//	ctrl := session.New(registry, client, session.WithRecorder(store))
//
// # Privacy
//
// Telemetry is local-only and never transmitted. Message content is never
// stored - only sizes, timings and outcomes.
package telemetry
