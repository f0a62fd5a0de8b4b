// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/jeranaias/lmchat/internal/inference"

// =============================================================================
// STATUS
// =============================================================================

// Status is the session's streaming state.
type Status int

const (
	// StatusIdle means no reply is in flight and Submit is accepted.
	StatusIdle Status = iota

	// StatusStreaming means a reply stream is open.
	StatusStreaming
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies what a stream reported.
type EventKind int

const (
	EventFragment EventKind = iota
	EventComplete
	EventError
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventFragment:
		return "fragment"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one report from a reply stream, tagged with the turn that
// opened it. Stats may accompany EventComplete.
type Event struct {
	Turn     uint64
	Kind     EventKind
	Fragment string
	Err      error
	Stats    *inference.Stats
}

// Dispatcher delivers stream events to the controller. Implementations
// must eventually call Controller.Handle with every event they receive.
type Dispatcher interface {
	Dispatch(Event)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(Event)

// Dispatch calls f(ev).
func (f DispatchFunc) Dispatch(ev Event) {
	f(ev)
}
