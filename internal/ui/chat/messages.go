// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lmchat/internal/render"
	"github.com/jeranaias/lmchat/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// EventMsg carries a stream event into the Update loop.
type EventMsg struct {
	Event session.Event
}

// DisplayMsg replaces the display settings, typically after the config
// file changed on disk.
type DisplayMsg struct {
	Render render.Options
}

// flushMsg asks for a redraw that the render throttle held back.
type flushMsg struct{}

// clearNoticeMsg clears the footer notice if it is still the one set at seq.
type clearNoticeMsg struct {
	seq int
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher forwards session events into a Bubble Tea program, so the
// controller only ever changes on the Update goroutine. Events sent before
// Attach or after the program exits are dropped.
type Dispatcher struct {
	mu      sync.Mutex
	program *tea.Program
}

// NewDispatcher returns an unattached dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Attach sets the program that receives events.
func (d *Dispatcher) Attach(p *tea.Program) {
	d.mu.Lock()
	d.program = p
	d.mu.Unlock()
}

// Dispatch implements session.Dispatcher.
func (d *Dispatcher) Dispatch(ev session.Event) {
	d.mu.Lock()
	p := d.program
	d.mu.Unlock()

	if p != nil {
		p.Send(EventMsg{Event: ev})
	}
}
