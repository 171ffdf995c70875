package tui

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// fitCell truncates s to width columns (ANSI-aware, with an ellipsis) and pads it with
// spaces to exactly width.
func fitCell(s string, width int) string {
	if width <= 0 {
		return ""
	}
	// Bound the width computation on pathological input.
	if len(s) > 8192 {
		s = xansi.Cut(s, 0, width+1)
	}
	if xansi.StringWidth(s) > width {
		s = xansi.Truncate(s, width, "…")
	}
	if w := xansi.StringWidth(s); w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

// normalizePane forces s to exactly width columns and height lines so panes line up under
// lipgloss.JoinHorizontal.
func normalizePane(s string, width, height int) string {
	width = max(width, 0)
	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}
	for i, ln := range lines {
		lines[i] = fitCell(ln, width)
	}
	return strings.Join(lines, "\n")
}

// visiblyEmpty reports whether a rendered line holds only escape codes and spaces.
func visiblyEmpty(s string) bool {
	return strings.TrimSpace(xansi.Strip(s)) == ""
}
