// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ModelStats aggregates turns for one model.
type ModelStats struct {
	Model            string
	Turns            int
	Completed        int
	Failed           int
	Cancelled        int
	Fragments        int
	ReplyChars       int
	CompletionTokens int
	TotalDuration    time.Duration
	AvgDuration      time.Duration
	LastUsed         time.Time

	// TokensPerSecond averages the server-reported generation speed over
	// the turns that had one. Zero when none did.
	TokensPerSecond float64
}

// CharsPerSecond is the reply throughput over all turns.
func (m ModelStats) CharsPerSecond() float64 {
	if m.TotalDuration <= 0 {
		return 0
	}
	return float64(m.ReplyChars) / m.TotalDuration.Seconds()
}

// SuccessRate is the fraction of turns that completed.
func (m ModelStats) SuccessRate() float64 {
	if m.Turns == 0 {
		return 0
	}
	return float64(m.Completed) / float64(m.Turns)
}

// DailyStats aggregates turns for one calendar day (UTC).
type DailyStats struct {
	Date   time.Time
	Turns  int
	Failed int
}

// ModelStats returns per-model aggregates for turns started at or after
// since, busiest model first.
func (s *Store) ModelStats(ctx context.Context, since time.Time) ([]ModelStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model,
		       COUNT(*),
		       SUM(outcome = 'completed'),
		       SUM(outcome = 'failed'),
		       SUM(outcome = 'cancelled'),
		       SUM(fragments),
		       SUM(reply_chars),
		       SUM(completion_tokens),
		       AVG(NULLIF(tokens_per_sec, 0)),
		       SUM(duration_ms),
		       MAX(started_at)
		FROM turns
		WHERE started_at >= ?
		GROUP BY model
		ORDER BY COUNT(*) DESC, model ASC`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query model stats: %w", err)
	}
	defer rows.Close()

	var out []ModelStats
	for rows.Next() {
		var m ModelStats
		var durationMs, lastMs int64
		var tps sql.NullFloat64
		if err := rows.Scan(&m.Model, &m.Turns, &m.Completed, &m.Failed, &m.Cancelled,
			&m.Fragments, &m.ReplyChars, &m.CompletionTokens, &tps, &durationMs, &lastMs); err != nil {
			return nil, fmt.Errorf("scan model stats: %w", err)
		}
		m.TokensPerSecond = tps.Float64
		m.TotalDuration = time.Duration(durationMs) * time.Millisecond
		if m.Turns > 0 {
			m.AvgDuration = m.TotalDuration / time.Duration(m.Turns)
		}
		m.LastUsed = time.UnixMilli(lastMs)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Trends returns per-day turn counts for the last days days, oldest first.
// Days without turns are included with zero counts.
func (s *Store) Trends(ctx context.Context, days int, now time.Time) ([]DailyStats, error) {
	if days <= 0 {
		return nil, nil
	}
	today := now.UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))

	rows, err := s.db.QueryContext(ctx, `
		SELECT (started_at / 86400000) AS day, COUNT(*), SUM(outcome = 'failed')
		FROM turns
		WHERE started_at >= ?
		GROUP BY day`, start.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query trends: %w", err)
	}
	defer rows.Close()

	byDay := make(map[int64]DailyStats)
	for rows.Next() {
		var day int64
		var d DailyStats
		if err := rows.Scan(&day, &d.Turns, &d.Failed); err != nil {
			return nil, fmt.Errorf("scan trends: %w", err)
		}
		byDay[day] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]DailyStats, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		d := byDay[date.UnixMilli()/86400000]
		d.Date = date
		out = append(out, d)
	}
	return out, nil
}
