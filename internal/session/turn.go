// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "time"

// Outcome is how a turn ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// TurnSummary describes a finished turn. It carries sizes and timings
// only, never message content. The token counts come from the server and
// are zero when it sent none.
type TurnSummary struct {
	SessionID        string
	Turn             uint64
	ModelID          string
	Outcome          Outcome
	Fragments        int
	ReplyChars       int
	EstimatedTokens  int
	PromptTokens     int
	CompletionTokens int
	TokensPerSecond  float64
	StartedAt        time.Time
	Duration         time.Duration
	Error            string
	Err              error
}

// TurnRecorder receives a summary of every finished turn. RecordTurn is
// called outside the controller's lock and must not block for long.
type TurnRecorder interface {
	RecordTurn(TurnSummary)
}

// TurnRecorderFunc adapts a function to TurnRecorder.
type TurnRecorderFunc func(TurnSummary)

// RecordTurn calls f(s).
func (f TurnRecorderFunc) RecordTurn(s TurnSummary) {
	f(s)
}
