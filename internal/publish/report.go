// Package publish renders a topic's results table as a markdown or HTML report.
package publish

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"verdict-cli/internal/rows"
)

type RenderOptions struct {
	Title       string
	GeneratedAt time.Time
}

// Summary counts agreement over the parents of a view.
type Summary struct {
	Tests    int `json:"tests"`
	Variants int `json:"variants"`
	Graded   int `json:"graded"`
	Match    int `json:"match"`
	Mismatch int `json:"mismatch"`
	Pending  int `json:"pending"`
}

// Rate is the share of decided parents on which the AI agreed with the human verdict.
func (s Summary) Rate() float64 {
	decided := s.Match + s.Mismatch
	if decided == 0 {
		return 0
	}
	return float64(s.Match) / float64(decided)
}

func Summarize(v rows.View) Summary {
	var s Summary
	for _, r := range v.Rows {
		p, ok := r.(rows.Parent)
		if !ok {
			s.Variants++
			continue
		}
		s.Tests++
		if p.GroundTruth.Graded() {
			s.Graded++
		}
		switch v.Agreement(p) {
		case rows.AgreementMatch:
			s.Match++
		case rows.AgreementMismatch:
			s.Mismatch++
		default:
			s.Pending++
		}
	}
	return s
}

// RenderTopicMarkdown renders v as a markdown document: a summary list followed by the
// flattened table, with variants indented under their test.
func RenderTopicMarkdown(topic string, v rows.View, opt RenderOptions) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	title := strings.TrimSpace(opt.Title)
	if title == "" {
		title = "AI behavior report: " + topic
	}
	writeLn("# " + title)
	writeLn("")
	if !opt.GeneratedAt.IsZero() {
		writeLn("_Generated " + opt.GeneratedAt.UTC().Format(time.RFC3339) + "_")
		writeLn("")
	}

	s := Summarize(v)
	writeLn("## Summary")
	writeLn("")
	writeLn(fmt.Sprintf("- Tests: %d (%d graded)", s.Tests, s.Graded))
	if s.Variants > 0 {
		writeLn(fmt.Sprintf("- Variants shown: %d", s.Variants))
	}
	writeLn(fmt.Sprintf("- Agreement: %d match, %d mismatch, %d pending", s.Match, s.Mismatch, s.Pending))
	if s.Match+s.Mismatch > 0 {
		writeLn(fmt.Sprintf("- Agreement rate: %.0f%%", s.Rate()*100))
	}
	writeLn("")

	writeLn("## Results")
	writeLn("")
	if len(v.Rows) == 0 {
		writeLn("_No tests._")
		return buf.String()
	}
	writeLn("| Statement | Criteria | AI | Ground truth | Agreement |")
	writeLn("| --- | --- | --- | --- | --- |")
	for _, r := range v.Rows {
		d := r.Data()
		statement := cell(d.Statement)
		criteria := ""
		if c, ok := r.(rows.Child); ok {
			statement = "&nbsp;&nbsp;↳ " + statement
			criteria = cell(c.PerturbationType)
		}
		writeLn(fmt.Sprintf("| %s | %s | %s | %s | %s |",
			statement, criteria, d.AIAssessment, d.GroundTruth, v.Agreement(r)))
	}
	return buf.String()
}

// cell makes s safe inside a markdown table cell.
func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
