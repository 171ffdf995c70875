package tui

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	mdRendererMu sync.Mutex
	// Renderers are cached by style and wrap width. WithAutoStyle is avoided because its
	// terminal queries can block.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// renderMarkdown renders md for the detail pane without a document margin.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	width = max(width, 10)

	style := markdownStyle()
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	if r == nil {
		cfg := markdownStyleConfig(style)
		zero := uint(0)
		cfg.Document.Margin = &zero
		rr, err := glamour.NewTermRenderer(
			glamour.WithStyles(cfg),
			glamour.WithWordWrap(width),
			glamour.WithEmoji(),
		)
		if err != nil {
			mdRendererMu.Unlock()
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	mdRendererMu.Unlock()

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func markdownStyleConfig(styleName string) ansi.StyleConfig {
	if styleName == "light" {
		cfg := styles.LightStyleConfig
		applyMarkdownPalette(&cfg, styleName)
		return cfg
	}
	cfg := styles.DarkStyleConfig
	applyMarkdownPalette(&cfg, "dark")
	return cfg
}

// markdownStyle picks "light" or "dark". VERDICT_TUI_MD_STYLE wins, then the TUI theme
// preference, then Lip Gloss's background detection.
func markdownStyle() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("VERDICT_TUI_MD_STYLE"))) {
	case "light":
		return "light"
	case "dark":
		return "dark"
	}
	dark, ok := themeFromEnv()
	if !ok {
		dark = lipgloss.HasDarkBackground()
	}
	if dark {
		return "dark"
	}
	return "light"
}

// applyMarkdownPalette keeps headings and body text on the table's foreground so the detail
// pane does not pick up the style's keyword colors.
func applyMarkdownPalette(cfg *ansi.StyleConfig, styleName string) {
	if cfg == nil {
		return
	}
	fg := mdColor(colorSurfaceFg, styleName)
	cfg.Text.Color = fg
	cfg.Heading.Color = fg
	cfg.H1.Color = fg
	cfg.H2.Color = fg
	cfg.H3.Color = fg
	cfg.Code.Color = fg
	cfg.CodeBlock.Color = fg
	if cfg.CodeBlock.BackgroundColor == nil {
		cfg.CodeBlock.BackgroundColor = mdColor(colorControlBg, styleName)
	}
	cfg.Strong.Color = nil
	cfg.Emph.Color = nil
	cfg.BlockQuote.Faint = mdBoolPtr(false)
}

func mdColor(c lipgloss.AdaptiveColor, styleName string) *string {
	if styleName == "light" {
		return &c.Light
	}
	return &c.Dark
}

func mdBoolPtr(b bool) *bool { return &b }
