// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages
// and the static model registry.
//
// # Key Types
//
//   - Message: a single user or assistant message
//   - Conversation: ordered, chronological list of messages for one session
//   - Descriptor: metadata for a selectable model (id, name, context limit)
//   - Registry: static catalog of Descriptors keyed by id
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.Append(model.NewUserMessage("Hello!"))
//
//	reg := model.DefaultRegistry()
//	desc, ok := reg.Lookup("llama3.1")
//
// Conversation is not safe for concurrent use; the session controller is
// its only mutator.
package model
