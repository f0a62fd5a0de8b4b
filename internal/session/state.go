// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/jeranaias/lmchat/internal/model"

// State is an immutable snapshot of the session for rendering.
type State struct {
	SessionID       string
	Messages        []model.Message
	Status          Status
	Model           model.Descriptor
	EstimatedTokens int

	// ContextUsage is EstimatedTokens over the model's context length,
	// or 0 when the length is unknown. It may exceed 1.
	ContextUsage float64

	Input string
	Turn  uint64
}

// Streaming reports whether a reply is in flight.
func (s State) Streaming() bool {
	return s.Status == StatusStreaming
}

// LastReply returns the content of the most recent assistant message.
func (s State) LastReply() (string, bool) {
	msg, ok := model.LastAssistant(s.Messages)
	return msg.Content, ok
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	tokens := c.conv.EstimateTokens()
	var usage float64
	if c.active.ContextLength > 0 {
		usage = float64(tokens) / float64(c.active.ContextLength)
	}
	return State{
		SessionID:       c.id,
		Messages:        c.conv.Messages(),
		Status:          c.status,
		Model:           c.active,
		EstimatedTokens: tokens,
		ContextUsage:    usage,
		Input:           c.input,
		Turn:            c.turn,
	}
}

// Subscribe registers fn to be called with a fresh snapshot after every
// change. fn runs outside the controller's lock on whichever goroutine
// made the change. The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.observerMu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn
	c.observerMu.Unlock()

	return func() {
		c.observerMu.Lock()
		delete(c.observers, id)
		c.observerMu.Unlock()
	}
}

// notify sends the current snapshot to every observer.
func (c *Controller) notify() {
	c.observerMu.Lock()
	if len(c.observers) == 0 {
		c.observerMu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.observerMu.Unlock()

	s := c.State()
	for _, fn := range fns {
		fn(s)
	}
}
