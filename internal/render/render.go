// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/jeranaias/lmchat/internal/config"
)

// Theme names accepted in the [ui] config section.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemeNoTTY = "notty"
)

// DefaultWrap is used when neither the config nor the caller gives a width.
const DefaultWrap = 80

// Options controls how replies are rendered.
type Options struct {
	// Markdown renders through glamour. When false replies are shown as
	// written, with code blocks highlighted unless the theme is notty.
	Markdown bool

	// WordWrap is the wrap width. Zero means DefaultWrap.
	WordWrap int

	// Theme is auto, dark, light or notty.
	Theme string
}

// FromConfig returns the options described by the [ui] config section.
func FromConfig(ui config.UIConfig) Options {
	return Options{
		Markdown: ui.Markdown,
		WordWrap: ui.WordWrap,
		Theme:    ui.Theme,
	}
}

// Renderer renders reply text. It is safe for concurrent use.
type Renderer struct {
	mu    sync.Mutex
	opts  Options
	theme string
	md    *glamour.TermRenderer
}

// New builds a renderer for opts.
func New(opts Options) (*Renderer, error) {
	if opts.WordWrap <= 0 {
		opts.WordWrap = DefaultWrap
	}
	theme := ResolveTheme(opts.Theme)

	r := &Renderer{opts: opts, theme: theme}
	if opts.Markdown {
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(theme),
			glamour.WithWordWrap(opts.WordWrap),
		)
		if err != nil {
			return nil, fmt.Errorf("markdown renderer: %w", err)
		}
		r.md = md
	}
	return r, nil
}

// Theme returns the resolved theme name, never auto.
func (r *Renderer) Theme() string {
	return r.theme
}

// Render formats content for the terminal. Markdown errors fall back to
// plain output so a malformed reply is still shown.
func (r *Renderer) Render(content string) string {
	if content == "" {
		return ""
	}
	if r.md == nil {
		return Plain(content, r.theme != ThemeNoTTY)
	}

	r.mu.Lock()
	out, err := r.md.Render(content)
	r.mu.Unlock()
	if err != nil {
		return Plain(content, r.theme != ThemeNoTTY)
	}
	return strings.Trim(out, "\n")
}

// ResolveTheme maps a configured theme to a glamour standard style. auto
// asks the terminal: no color support gives notty, otherwise dark or light
// by background.
func ResolveTheme(theme string) string {
	switch strings.ToLower(strings.TrimSpace(theme)) {
	case ThemeDark:
		return ThemeDark
	case ThemeLight:
		return ThemeLight
	case ThemeNoTTY:
		return ThemeNoTTY
	}

	if termenv.ColorProfile() == termenv.Ascii {
		return ThemeNoTTY
	}
	if termenv.HasDarkBackground() {
		return ThemeDark
	}
	return ThemeLight
}
