// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestNewTheme_ExplicitModes(t *testing.T) {
	assert.True(t, NewTheme("dark").IsDark)
	assert.False(t, NewTheme("light").IsDark)
	assert.Equal(t, termenv.Ascii, NewTheme("notty").ColorProfile)
}

func TestNewTheme_StylesRender(t *testing.T) {
	theme := NewTheme("notty")
	assert.Contains(t, theme.UserLabel.Render("You"), "You")
	assert.Contains(t, theme.StatusBar.Render("idle"), "idle")
}

func TestUsageColor(t *testing.T) {
	tests := []struct {
		usage float64
		want  string
	}{
		{0, Emerald.Dark},
		{0.5, Emerald.Dark},
		{0.75, Amber.Dark},
		{0.99, Amber.Dark},
		{1.0, Rose.Dark},
		{2.5, Rose.Dark},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UsageColor(tt.usage).Dark, "usage %v", tt.usage)
	}
}
