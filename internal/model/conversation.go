// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrIndexOutOfRange is returned by Replace for an index past the end.
var ErrIndexOutOfRange = errors.New("message index out of range")

// titleMaxLen bounds the title derived from the first user message.
const titleMaxLen = 50

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the ordered message history of one chat session.
// Insertion order is chronological.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	messages []Message
	chars    int
}

// NewConversation creates an empty conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        "conv_" + uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		messages:  make([]Message, 0),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds a message to the end of the conversation and returns its index.
func (c *Conversation) Append(msg Message) int {
	c.messages = append(c.messages, msg)
	c.chars += msg.CharCount()
	c.UpdatedAt = time.Now()
	return len(c.messages) - 1
}

// Replace swaps the message at index i for msg. Earlier entries are never
// touched, so replacing the trailing message costs O(1) regardless of history
// length.
func (c *Conversation) Replace(i int, msg Message) error {
	if i < 0 || i >= len(c.messages) {
		return ErrIndexOutOfRange
	}
	c.chars += msg.CharCount() - c.messages[i].CharCount()
	c.messages[i] = msg
	c.UpdatedAt = time.Now()
	return nil
}

// Clear removes all messages.
func (c *Conversation) Clear() {
	c.messages = make([]Message, 0)
	c.chars = 0
	c.UpdatedAt = time.Now()
}

// Messages returns a copy of the message list.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// LastAssistant returns the most recent assistant message in msgs.
func LastAssistant(msgs []Message) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return msgs[i], true
		}
	}
	return Message{}, false
}

// =============================================================================
// TOKEN ESTIMATION
// =============================================================================

// CharCount returns the total number of characters across all messages.
// The running total is maintained on every Append and Replace.
func (c *Conversation) CharCount() int {
	return c.chars
}

// EstimateTokens returns ceil(CharCount / 4). It is informational only.
func (c *Conversation) EstimateTokens() int {
	return EstimateTokens(c.chars)
}

// =============================================================================
// TITLE
// =============================================================================

// Title derives a title from the first user message.
func (c *Conversation) Title() string {
	return Title(c.messages)
}

// Title derives a conversation title from the first user message in msgs.
func Title(msgs []Message) string {
	for _, msg := range msgs {
		if msg.Role != RoleUser {
			continue
		}
		title := strings.Join(strings.Fields(msg.Content), " ")
		return Message{Content: title}.Preview(titleMaxLen)
	}
	return "New conversation"
}
