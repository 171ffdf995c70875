package tui

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// The results table must stay readable on light and dark terminals, so colors are adaptive
// and "faint" is only applied on dark backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted      = ac("240", "243")
	colorChromeFg   = ac("240", "245")
	colorSurfaceFg  = ac("235", "252")
	colorControlBg  = ac("252", "235")
	colorSelectedBg = ac("#e9e9e9", "#262626")
	colorSelectedFg = ac("235", "255")
	colorAccent     = ac("27", "62")
	colorAccentFg   = ac("255", "235")

	// Agreement and verdict badges.
	colorMatch    = ac("28", "78")
	colorMismatch = ac("160", "203")
	colorPending  = ac("136", "179")

	colorFlashErrorBg = ac("196", "160")
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

func styleChrome() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorChromeFg)
}

func styleHeader() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg)
}

func styleCursor() lipgloss.Style {
	return lipgloss.NewStyle().Background(colorSelectedBg).Foreground(colorSelectedFg).Bold(true)
}

func styleDropTarget() lipgloss.Style {
	return lipgloss.NewStyle().Underline(true).Foreground(colorAccent)
}

func styleBadge(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

func styleError() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorMismatch)
}

func styleErrorBar() lipgloss.Style {
	return lipgloss.NewStyle().Background(colorFlashErrorBg).Foreground(colorAccentFg).Padding(0, 1)
}

func styleModal() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Background(colorControlBg).
		Padding(0, 1)
}

// applyColorProfilePreference sets Lip Gloss's color profile for the TUI. Only NO_COLOR is
// honored; CLICOLOR handling in termenv.EnvColorProfile is meant for piped CLI output.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	profile := termenv.ColorProfile()

	// Trust TERM/COLORTERM when they claim more than the detector found.
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	switch {
	case strings.Contains(colorterm, "truecolor"), strings.Contains(colorterm, "24bit"):
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	case strings.Contains(term, "256color"):
		if profile == termenv.Ascii || profile == termenv.ANSI {
			profile = termenv.ANSI256
		}
	}

	lipgloss.SetColorProfile(profile)
}

// themeFromEnv resolves VERDICT_TUI_THEME, VERDICT_TUI_DARKBG and COLORFGBG, in that order.
// ok is false when none of them decides.
func themeFromEnv() (dark bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("VERDICT_TUI_THEME"))) {
	case "light":
		return false, true
	case "dark":
		return true, true
	}
	if v := strings.TrimSpace(os.Getenv("VERDICT_TUI_DARKBG")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b, true
		}
	}
	// COLORFGBG is "fg;bg" (sometimes more segments); 0-6 are the dark palette entries.
	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			return bg < 7, true
		}
	}
	return false, false
}

// applyThemePreference configures Lip Gloss's background detection, which some terminals
// report unreliably.
func applyThemePreference() {
	if dark, ok := themeFromEnv(); ok {
		lipgloss.SetHasDarkBackground(dark)
		return
	}
	if runtime.GOOS == "darwin" {
		if dark, ok := macOSHasDarkAppearance(); ok {
			lipgloss.SetHasDarkBackground(dark)
		}
	}
}

func macOSHasDarkAppearance() (dark bool, ok bool) {
	// Prints "Dark" in dark mode and exits 1 in light mode (key missing).
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	out, err := exec.CommandContext(ctx, "defaults", "read", "-g", "AppleInterfaceStyle").CombinedOutput()
	if ctx.Err() != nil {
		return false, false
	}
	if err == nil {
		return strings.Contains(strings.ToLower(string(out)), "dark"), true
	}
	if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
		return false, true
	}
	return false, false
}
