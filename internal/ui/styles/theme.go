// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles for the chat view.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	Notice         lipgloss.Style
	ErrorText      lipgloss.Style

	InputBorder lipgloss.Style

	StatusBar       lipgloss.Style
	StatusModel     lipgloss.Style
	StatusIdle      lipgloss.Style
	StatusStreaming lipgloss.Style
	StatusMuted     lipgloss.Style
}

// NewTheme creates a theme for the named mode: "dark", "light", "notty" or
// "auto" (anything else) to ask the terminal.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()
	isDark := termenv.HasDarkBackground()

	switch strings.ToLower(mode) {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	case "notty":
		profile = termenv.Ascii
	}

	lipgloss.SetHasDarkBackground(isDark)
	lipgloss.SetColorProfile(profile)

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)
	t.Notice = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose)

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusModel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.StatusIdle = lipgloss.NewStyle().
		Foreground(Emerald)
	t.StatusStreaming = lipgloss.NewStyle().
		Foreground(Amber)
	t.StatusMuted = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// Usage returns the style for a context usage fraction.
func (t *Theme) Usage(usage float64) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(UsageColor(usage))
}
