// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 2
)

// Schema creates the telemetry tables.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per finished turn. No message content.
CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    turn INTEGER NOT NULL,
    model TEXT NOT NULL,
    outcome TEXT NOT NULL,       -- completed, failed, cancelled
    fragments INTEGER NOT NULL,
    reply_chars INTEGER NOT NULL,
    est_tokens INTEGER NOT NULL,
    prompt_tokens INTEGER NOT NULL DEFAULT 0,     -- reported by the server, 0 if unknown
    completion_tokens INTEGER NOT NULL DEFAULT 0,
    tokens_per_sec REAL NOT NULL DEFAULT 0,
    started_at INTEGER NOT NULL, -- Unix milliseconds
    duration_ms INTEGER NOT NULL,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_turns_started_at ON turns(started_at);
CREATE INDEX IF NOT EXISTS idx_turns_model ON turns(model);
`

// migrations bring a database at version N-1 up to N, keyed by N.
var migrations = map[int][]string{
	2: {
		"ALTER TABLE turns ADD COLUMN prompt_tokens INTEGER NOT NULL DEFAULT 0",
		"ALTER TABLE turns ADD COLUMN completion_tokens INTEGER NOT NULL DEFAULT 0",
		"ALTER TABLE turns ADD COLUMN tokens_per_sec REAL NOT NULL DEFAULT 0",
	},
}
