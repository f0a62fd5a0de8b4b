// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis marks truncated text.
const Ellipsis = "…"

// Width returns the display width of s in terminal cells.
func Width(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate shortens s to at most width cells, ending in an ellipsis when
// anything was cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, Ellipsis)
}

// PadRight pads s with spaces to width cells.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// Wrap breaks every line of s at width cells, preferring spaces.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}

	var out strings.Builder
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			out.WriteByte('\n')
		}
		if runewidth.StringWidth(line) <= width {
			out.WriteString(line)
			continue
		}
		out.WriteString(wrapLine(line, width))
	}
	return out.String()
}

func wrapLine(line string, width int) string {
	var (
		out       strings.Builder
		cur       []rune
		curWidth  int
		lastSpace = -1
	)

	for _, r := range line {
		w := runewidth.RuneWidth(r)
		if curWidth+w > width && len(cur) > 0 {
			if lastSpace > 0 {
				out.WriteString(strings.TrimRight(string(cur[:lastSpace]), " "))
				cur = append([]rune(nil), cur[lastSpace+1:]...)
			} else {
				out.WriteString(string(cur))
				cur = cur[:0]
			}
			out.WriteByte('\n')
			curWidth = runewidth.StringWidth(string(cur))
			lastSpace = -1
			for i, c := range cur {
				if c == ' ' {
					lastSpace = i
				}
			}
		}
		if r == ' ' {
			lastSpace = len(cur)
		}
		cur = append(cur, r)
		curWidth += w
	}
	out.WriteString(string(cur))
	return out.String()
}
