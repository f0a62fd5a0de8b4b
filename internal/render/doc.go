// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant replies into terminal output.
//
// Markdown goes through glamour with a theme picked from the terminal's
// background. Plain mode keeps the text as written but still highlights
// fenced code blocks with chroma. Width helpers use go-runewidth so wide
// characters and emoji line up.
package render
