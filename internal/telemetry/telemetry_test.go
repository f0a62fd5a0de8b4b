// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lmchat/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "telemetry.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func summary(modelID string, outcome session.Outcome, started time.Time, d time.Duration, chars int) session.TurnSummary {
	return session.TurnSummary{
		SessionID:  "s1",
		Turn:       1,
		ModelID:    modelID,
		Outcome:    outcome,
		Fragments:  3,
		ReplyChars: chars,
		StartedAt:  started,
		Duration:   d,
	}
}

func TestStore_RecordAndCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.RecordTurn(summary("llama3.1", session.OutcomeCompleted, time.Now(), time.Second, 10))
	failed := summary("llama3.1", session.OutcomeFailed, time.Now(), time.Second, 0)
	failed.Error = "connection reset"
	store.RecordTurn(failed)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStore_ModelStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Insert(ctx, summary("llama3.1", session.OutcomeCompleted, now, 2*time.Second, 100)))
	require.NoError(t, store.Insert(ctx, summary("llama3.1", session.OutcomeCancelled, now, 2*time.Second, 20)))
	require.NoError(t, store.Insert(ctx, summary("llama3.1", session.OutcomeFailed, now, time.Second, 0)))
	require.NoError(t, store.Insert(ctx, summary("phi3", session.OutcomeCompleted, now, time.Second, 50)))
	require.NoError(t, store.Insert(ctx, summary("phi3", session.OutcomeCompleted, now.Add(-48*time.Hour), time.Second, 50)))

	stats, err := store.ModelStats(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 2)

	llama := stats[0]
	assert.Equal(t, "llama3.1", llama.Model)
	assert.Equal(t, 3, llama.Turns)
	assert.Equal(t, 1, llama.Completed)
	assert.Equal(t, 1, llama.Failed)
	assert.Equal(t, 1, llama.Cancelled)
	assert.Equal(t, 9, llama.Fragments)
	assert.Equal(t, 120, llama.ReplyChars)
	assert.Equal(t, 5*time.Second, llama.TotalDuration)
	assert.InDelta(t, 24.0, llama.CharsPerSecond(), 1e-9)
	assert.InDelta(t, 1.0/3.0, llama.SuccessRate(), 1e-9)

	assert.Equal(t, "phi3", stats[1].Model)
	assert.Equal(t, 1, stats[1].Turns)
	assert.Zero(t, stats[1].TokensPerSecond)
}

func TestStore_ModelStats_TokensPerSecond(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	fast := summary("llama3.1", session.OutcomeCompleted, now, time.Second, 10)
	fast.CompletionTokens = 40
	fast.TokensPerSecond = 40
	slow := summary("llama3.1", session.OutcomeCompleted, now, time.Second, 10)
	slow.CompletionTokens = 20
	slow.TokensPerSecond = 20
	unknown := summary("llama3.1", session.OutcomeFailed, now, time.Second, 0)

	for _, s := range []session.TurnSummary{fast, slow, unknown} {
		require.NoError(t, store.Insert(ctx, s))
	}

	stats, err := store.ModelStats(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 60, stats[0].CompletionTokens)
	assert.InDelta(t, 30.0, stats[0].TokensPerSecond, 1e-9, "turns without a rate are left out of the average")
}

func TestStore_Trends(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, summary("m", session.OutcomeCompleted, now, time.Second, 1)))
	require.NoError(t, store.Insert(ctx, summary("m", session.OutcomeFailed, now, time.Second, 1)))
	require.NoError(t, store.Insert(ctx, summary("m", session.OutcomeCompleted, now.AddDate(0, 0, -2), time.Second, 1)))

	trends, err := store.Trends(ctx, 3, now)
	require.NoError(t, err)
	require.Len(t, trends, 3)

	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), trends[0].Date)
	assert.Equal(t, 1, trends[0].Turns)
	assert.Equal(t, 0, trends[1].Turns)
	assert.Equal(t, 2, trends[2].Turns)
	assert.Equal(t, 1, trends[2].Failed)
}

func TestStore_DeleteBefore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Insert(ctx, summary("m", session.OutcomeCompleted, now.AddDate(0, 0, -40), time.Second, 1)))
	require.NoError(t, store.Insert(ctx, summary("m", session.OutcomeCompleted, now, time.Second, 1)))

	removed, err := store.DeleteBefore(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "telemetry.db")
	store, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Insert(context.Background(), summary("m", session.OutcomeCompleted, time.Now(), time.Second, 1)))
	require.NoError(t, store.Close())

	store, err = Open(path, nil)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_StampsSchemaVersion(t *testing.T) {
	store := openTestStore(t)

	v, err := store.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestOpen_MigratesVersionOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL) WITHOUT ROWID`,
		`CREATE TABLE turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL, turn INTEGER NOT NULL, model TEXT NOT NULL,
			outcome TEXT NOT NULL, fragments INTEGER NOT NULL, reply_chars INTEGER NOT NULL,
			est_tokens INTEGER NOT NULL, started_at INTEGER NOT NULL, duration_ms INTEGER NOT NULL,
			error TEXT)`,
		`INSERT INTO metadata (key, value) VALUES ('schema_version', '1')`,
		`INSERT INTO turns (session_id, turn, model, outcome, fragments, reply_chars, est_tokens, started_at, duration_ms)
		 VALUES ('old', 1, 'phi3', 'completed', 2, 5, 3, 0, 1000)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	store, err := Open(path, nil)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)

	s := summary("phi3", session.OutcomeCompleted, time.Now(), time.Second, 10)
	s.TokensPerSecond = 12.5
	require.NoError(t, store.Insert(ctx, s))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stats, err := store.ModelStats(ctx, time.UnixMilli(0))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.InDelta(t, 12.5, stats[0].TokensPerSecond, 1e-9)
}
