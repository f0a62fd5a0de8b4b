// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea front end for a chat session.
//
// The session controller does the work; this package draws its State and
// turns keys into controller calls. Stream events reach the controller
// through the program's message loop (see Dispatcher), so every mutation
// happens on the Update goroutine and redraws follow them directly.
//
// Key bindings:
//
//	Enter     submit the input
//	Esc       cancel the reply in flight
//	Ctrl+L    clear the conversation
//	Ctrl+N    switch to the next model (clears the conversation)
//	Ctrl+Y    copy the last reply to the clipboard
//	PgUp/PgDn scroll the transcript
//	Ctrl+C    quit
package chat
