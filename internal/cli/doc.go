// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the lmchat command line.
//
// Commands:
//
//	lmchat                   start the chat TUI (line mode when not on a TTY)
//	lmchat chat [--plain]    same, --plain forces the line-mode REPL
//	lmchat ask PROMPT        one turn, reply printed to stdout
//	lmchat models            registry models and which the server has
//	lmchat doctor            check config and backend
//	lmchat stats             per-model turn statistics
//	lmchat config ...        show, get and set config values
//	lmchat version           print version information
//
// Global flags: --config, --backend, --model, --log-level.
package cli
