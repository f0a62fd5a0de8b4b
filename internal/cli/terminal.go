// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/jeranaias/lmchat/internal/config"
	"github.com/jeranaias/lmchat/internal/render"
)

const (
	// DefaultTerminalWidth is the fallback width when detection fails.
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the narrowest width used for wrapping.
	MinTerminalWidth = 40
)

// isTerminal reports whether r or w is an *os.File attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool {
	return isTerminal(os.Stdin)
}

// terminalWidth returns the width of w when it is a terminal, otherwise
// DefaultTerminalWidth.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return max(width, MinTerminalWidth)
}

// renderOptionsFor adapts the [ui] settings to an output: a wrap width
// from the terminal when none is configured, and no styling when the
// output is not a terminal.
func renderOptionsFor(ui config.UIConfig, w io.Writer) render.Options {
	opts := render.FromConfig(ui)
	if !isTerminal(w) {
		opts.Theme = render.ThemeNoTTY
	}
	if opts.WordWrap == 0 {
		opts.WordWrap = terminalWidth(w) - 2
	}
	return opts
}
