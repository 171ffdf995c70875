package tui

import (
	"fmt"
	"strings"

	"verdict-cli/internal/rows"
)

func (m appModel) viewDetail(width int) string {
	r, v, ok := m.focused()
	if !ok {
		return styleMuted().Render(" Nothing selected.")
	}
	out := renderMarkdown(m.detailMarkdown(v, r), width)
	// Drop the blank lines glamour leaves at the top.
	lines := strings.Split(out, "\n")
	for len(lines) > 0 && visiblyEmpty(lines[0]) {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

// detailMarkdown describes the focused row for the detail pane.
func (m appModel) detailMarkdown(v rows.View, r rows.Row) string {
	f := r.Data()
	var b strings.Builder

	switch x := r.(type) {
	case rows.Parent:
		b.WriteString("## Test statement\n\n")
		writeQuote(&b, x.Statement)
		fmt.Fprintf(&b, "- **AI assessment:** %s\n", f.AIAssessment)
		fmt.Fprintf(&b, "- **Ground truth:** %s\n", f.GroundTruth)
		fmt.Fprintf(&b, "- **Agreement:** %s\n", v.Agreement(r))
		if n := len(m.dash.Cache().Get(x.ID)); n > 0 {
			fmt.Fprintf(&b, "- **Perturbations:** %d\n", n)
		}
	case rows.Child:
		fmt.Fprintf(&b, "## Perturbation: %s\n\n", x.PerturbationType)
		writeQuote(&b, x.Statement)
		fmt.Fprintf(&b, "- **AI assessment:** %s\n", f.AIAssessment)
		fmt.Fprintf(&b, "- **Ground truth:** %s\n", f.GroundTruth)
		fmt.Fprintf(&b, "- **Agreement:** %s\n", v.Agreement(r))
		if x.Validity != "" {
			fmt.Fprintf(&b, "- **Validity:** %s\n", x.Validity)
		}
		if p, ok := v.ParentOf(x); ok {
			fmt.Fprintf(&b, "- **Original:** %s\n", p.Statement)
		}
	}

	if f.Labeler != "" {
		fmt.Fprintf(&b, "- **Labeler:** %s\n", f.Labeler)
	}
	if f.Author != "" {
		fmt.Fprintf(&b, "- **Author:** %s\n", f.Author)
	}
	if f.ModelScore != "" {
		fmt.Fprintf(&b, "- **Model score:** %s\n", f.ModelScore)
	}
	if f.IsBuiltin {
		b.WriteString("- **Built-in test**\n")
	}

	if d := strings.TrimSpace(f.Description); d != "" {
		b.WriteString("\n### Description\n\n")
		b.WriteString(d)
		b.WriteString("\n")
	}

	if p, ok := r.(rows.Parent); ok {
		for _, e := range []string{m.dash.GenerationErr(p.ID), m.dash.MutationErr(p.ID)} {
			if e != "" {
				fmt.Fprintf(&b, "\n### Error\n\n%s\n", e)
			}
		}
	}
	return b.String()
}

func writeQuote(b *strings.Builder, s string) {
	for _, ln := range strings.Split(strings.TrimSpace(s), "\n") {
		b.WriteString("> ")
		b.WriteString(ln)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
