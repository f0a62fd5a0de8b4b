// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/lmchat/internal/session"
)

// Store is the SQLite-backed turn log. It implements session.TurnRecorder.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// migrate stamps a new database with SchemaVersion and upgrades an older
// one in a single transaction. A newer database is left alone.
func migrate(db *sql.DB) error {
	var version int
	err := db.QueryRow("SELECT CAST(value AS INTEGER) FROM metadata WHERE key = 'schema_version'").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		// Schema has just created the current layout
		_, err = db.Exec("INSERT INTO metadata (key, value) VALUES ('schema_version', ?)", strconv.Itoa(SchemaVersion))
		return err
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= SchemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for v := version + 1; v <= SchemaVersion; v++ {
		for _, stmt := range migrations[v] {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("migrate to version %d: %w", v, err)
			}
		}
	}
	if _, err := tx.Exec("UPDATE metadata SET value = ? WHERE key = 'schema_version'", strconv.Itoa(SchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Version returns the schema version recorded in the database.
func (s *Store) Version(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT CAST(value AS INTEGER) FROM metadata WHERE key = 'schema_version'").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTurn implements session.TurnRecorder. Failures are logged, never
// returned, so telemetry can't disturb a chat.
func (s *Store) RecordTurn(t session.TurnSummary) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Insert(ctx, t); err != nil {
		s.logger.Warn("telemetry insert failed", "turn", t.Turn, "error", err)
	}
}

// Insert stores one turn summary.
func (s *Store) Insert(ctx context.Context, t session.TurnSummary) error {
	var errText sql.NullString
	if t.Error != "" {
		errText = sql.NullString{String: t.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (session_id, turn, model, outcome, fragments, reply_chars,
		                   est_tokens, prompt_tokens, completion_tokens, tokens_per_sec,
		                   started_at, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SessionID, int64(t.Turn), t.ModelID, string(t.Outcome), t.Fragments, t.ReplyChars,
		t.EstimatedTokens, t.PromptTokens, t.CompletionTokens, t.TokensPerSecond,
		t.StartedAt.UnixMilli(), t.Duration.Milliseconds(), errText)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// Count returns the number of recorded turns.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM turns").Scan(&n); err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}

// DeleteBefore removes turns that started before t and returns how many
// were removed.
func (s *Store) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM turns WHERE started_at < ?", t.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete turns: %w", err)
	}
	return res.RowsAffected()
}
