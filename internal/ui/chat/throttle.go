// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// DefaultMaxFPS caps transcript redraws while a reply streams.
const DefaultMaxFPS = 30

// renderThrottle limits how often streaming fragments redraw the
// transcript. Fragments are always applied to the session; only the
// (Markdown) redraw is skipped, and a single deferred flush makes sure the
// last fragment is drawn.
//
// Used as a pointer so Bubble Tea's model copies share one limiter.
type renderThrottle struct {
	limiter  *rate.Limiter
	interval time.Duration
	pending  bool
}

func newRenderThrottle(fps int) *renderThrottle {
	if fps <= 0 {
		fps = DefaultMaxFPS
	}
	return &renderThrottle{
		limiter:  rate.NewLimiter(rate.Limit(fps), 1),
		interval: time.Second / time.Duration(fps),
	}
}

// allow reports whether a redraw may happen now. When it may not, the
// returned command (nil if one is already queued) delivers a flushMsg
// once the interval has passed.
func (t *renderThrottle) allow() (bool, tea.Cmd) {
	if t.limiter.Allow() {
		return true, nil
	}
	if t.pending {
		return false, nil
	}
	t.pending = true
	return false, tea.Tick(t.interval, func(time.Time) tea.Msg {
		return flushMsg{}
	})
}

// flushed clears the queued-flush flag.
func (t *renderThrottle) flushed() {
	t.pending = false
}
