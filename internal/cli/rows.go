package cli

import (
	"fmt"
	"strings"

	"verdict-cli/internal/rows"
)

// rowOut is the output shape of one table row.
type rowOut struct {
	Kind         string `json:"kind"`
	ID           string `json:"id"`
	ParentID     string `json:"parent_id,omitempty"`
	Statement    string `json:"statement"`
	Criteria     string `json:"criteria,omitempty"`
	AIAssessment string `json:"ai_assessment"`
	GroundTruth  string `json:"ground_truth"`
	Agreement    string `json:"agreement"`
	Validity     string `json:"validity,omitempty"`
	Labeler      string `json:"labeler,omitempty"`
	Author       string `json:"author,omitempty"`
}

func rowsOut(v rows.View) []rowOut {
	out := make([]rowOut, 0, len(v.Rows))
	for _, r := range v.Rows {
		d := r.Data()
		o := rowOut{
			Kind:         "test",
			ID:           d.ID,
			Statement:    d.Statement,
			AIAssessment: string(d.AIAssessment),
			GroundTruth:  string(d.GroundTruth),
			Agreement:    v.Agreement(r).String(),
			Labeler:      d.Labeler,
			Author:       d.Author,
		}
		if c, ok := r.(rows.Child); ok {
			o.Kind = "variant"
			o.ParentID = c.ParentID
			o.Criteria = c.PerturbationType
			o.Validity = string(c.Validity)
		}
		out = append(out, o)
	}
	return out
}

func parentOut(p rows.Parent) rowOut {
	return rowsOut(rows.View{Rows: []rows.Row{p}})[0]
}

// parseSort parses "col" or "col:desc".
func parseSort(s string) (rows.Sort, error) {
	name, dir, _ := strings.Cut(strings.TrimSpace(s), ":")
	col, err := rows.ParseColumn(name)
	if err != nil {
		return rows.Sort{}, err
	}
	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", "asc":
		return rows.Sort{Column: col}, nil
	case "desc":
		return rows.Sort{Column: col, Desc: true}, nil
	default:
		return rows.Sort{}, fmt.Errorf("invalid sort direction: %q (expected asc|desc)", dir)
	}
}

// parseFilter parses "col=value".
func parseFilter(s string) (rows.Column, string, error) {
	name, val, ok := strings.Cut(s, "=")
	if !ok {
		return "", "", fmt.Errorf("invalid filter: %q (expected col=value)", s)
	}
	col, err := rows.ParseColumn(strings.TrimSpace(name))
	if err != nil {
		return "", "", err
	}
	return col, strings.TrimSpace(val), nil
}

func hiddenColumns(v rows.View) []string {
	var out []string
	for _, c := range rows.Columns {
		if !v.ColumnVisible(c) {
			out = append(out, string(c))
		}
	}
	return out
}
