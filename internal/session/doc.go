// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the chat session controller.
//
// A Controller owns one conversation, the active model and the session
// status. Submit appends the user's message and starts a reply stream on a
// pump goroutine; every fragment, completion and error the pump sees is
// handed to a Dispatcher as an Event tagged with its turn number, and
// Handle folds it back into the conversation. Events from a turn that is
// no longer current, or that arrive after the session has gone idle, are
// dropped, so a cancelled stream can never write into a newer reply.
//
// The default Dispatcher calls Handle on the pump goroutine. Front ends
// with their own event loop (the TUI) dispatch into that loop instead and
// call Handle from there.
//
// Usage:
//
//	ctrl := session.New(registry, client, session.WithLogger(logger))
//	unsubscribe := ctrl.Subscribe(func(s session.State) { redraw(s) })
//	defer unsubscribe()
//	ctrl.Submit("hi")
package session
