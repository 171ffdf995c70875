package tui

import (
	"os"
	"strings"
	"sync"
)

// Terminal apps can't change the user's font. Instead we choose between Unicode and ASCII
// glyph sets for table affordances (twisties, checkboxes, badges, drag handles).

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

// applyGlyphPreference applies VERDICT_TUI_GLYPHS, falling back to the configured name.
func applyGlyphPreference(configured string) {
	v := strings.TrimSpace(os.Getenv("VERDICT_TUI_GLYPHS"))
	if v == "" {
		v = configured
	}
	if gs, ok := parseGlyphSet(v); ok {
		setGlyphs(gs)
	}
}

func parseGlyphSet(v string) (glyphSet, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "unicode", "utf8":
		return glyphSetUnicode, true
	case "ascii":
		return glyphSetASCII, true
	default:
		return glyphSetUnicode, false
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	gs := currentGlyphs
	glyphsMu.RUnlock()
	return gs
}

func pick(unicode, ascii string) string {
	if glyphs() == glyphSetASCII {
		return ascii
	}
	return unicode
}

func glyphTwistyCollapsed() string { return pick("▸", ">") }
func glyphTwistyExpanded() string  { return pick("▾", "v") }
func glyphChildIndent() string     { return pick("↳", "`-") }
func glyphChecked() string         { return pick("☑", "[x]") }
func glyphUnchecked() string       { return pick("☐", "[ ]") }
func glyphDragHandle() string      { return pick("≡", "=") }
func glyphMatch() string           { return pick("✓", "ok") }
func glyphMismatch() string        { return pick("✗", "x") }
func glyphPending() string         { return pick("…", "..") }
func glyphSortAsc() string         { return pick("▲", "^") }
func glyphSortDesc() string        { return pick("▼", "v") }
func glyphHRule() string           { return pick("─", "-") }
func glyphSep() string             { return pick("·", "|") }
