// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the lipgloss palette and styles for the chat TUI.
// Colors are AdaptiveColor so light and dark terminals both read well.
package styles
