// Package rows is the hierarchical row engine behind the results table.
//
// The canonical data is an ordered sequence of Parent rows (one per test statement) owned by
// Table. Child rows (one per generated perturbation) are never stored there: Flatten synthesizes
// them from a Cache at render time, right after their expanded Parent. Everything a renderer
// sees is a View, recomputed from Table + Expansion + Cache; nothing in a View is mutable
// state of its own.
package rows

import (
	"strings"

	"verdict-cli/internal/model"
)

// Row is one line of the results table. It is either a Parent or a Child; callers
// distinguish them with a type switch.
type Row interface {
	RowID() string
	Data() Fields
	isRow()
}

// Fields are the columns shared by both row shapes.
type Fields struct {
	ID           string
	Statement    string
	GroundTruth  model.GroundTruth
	AIAssessment model.AIAssessment
	Agreement    *bool
	Topic        string

	Labeler     string
	Description string
	Author      string
	ModelScore  string
	IsBuiltin   bool
}

// Parent is a test statement row. Only parents live in the canonical sequence.
type Parent struct {
	Fields
}

// Child is a perturbation of a Parent. ID is the perturbation's own id.
type Child struct {
	Fields
	ParentID         string
	PerturbationType string
	Validity         model.Validity
}

func (p Parent) RowID() string { return p.ID }
func (p Parent) Data() Fields  { return p.Fields }
func (Parent) isRow()          {}

func (c Child) RowID() string { return c.ID }
func (c Child) Data() Fields  { return c.Fields }
func (Child) isRow()          {}

// Selectable reports whether r may carry a selection checkbox. Children render an
// unselectable cell.
func Selectable(r Row) bool {
	switch r.(type) {
	case Parent:
		return true
	default:
		return false
	}
}

// IsChild reports whether r is a perturbation row.
func IsChild(r Row) bool {
	_, ok := r.(Child)
	return ok
}

func ParentFromTest(t model.Test) Parent {
	gt := t.GroundTruth
	if !gt.Valid() {
		gt = model.GroundTruthUngraded
	}
	ai := t.AIAssessment
	if !ai.Valid() {
		ai = model.AIGrading
	}
	var agreement *bool
	if t.Agreement != nil {
		agreement = model.BoolPtr(*t.Agreement)
	}
	return Parent{Fields: Fields{
		ID:           strings.TrimSpace(t.ID),
		Statement:    t.Statement,
		GroundTruth:  gt,
		AIAssessment: ai,
		Agreement:    agreement,
		Topic:        t.Topic,
		Labeler:      t.Labeler,
		Description:  t.Description,
		Author:       t.Author,
		ModelScore:   t.ModelScore,
		IsBuiltin:    t.IsBuiltin,
	}}
}

func ParentsFromTests(ts []model.Test) []Parent {
	out := make([]Parent, 0, len(ts))
	seen := map[string]bool{}
	for _, t := range ts {
		p := ParentFromTest(t)
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

// Test converts p back into the API record shape.
func (p Parent) Test() model.Test {
	var agreement *bool
	if p.Agreement != nil {
		agreement = model.BoolPtr(*p.Agreement)
	}
	return model.Test{
		ID:           p.ID,
		Topic:        p.Topic,
		Statement:    p.Statement,
		GroundTruth:  p.GroundTruth,
		AIAssessment: p.AIAssessment,
		Agreement:    agreement,
		Labeler:      p.Labeler,
		Description:  p.Description,
		Author:       p.Author,
		ModelScore:   p.ModelScore,
		IsBuiltin:    p.IsBuiltin,
	}
}

// NewChild synthesizes the row for perturbation pt of parent. Display metadata is inherited
// from the parent; statement, verdicts and identity come from the perturbation.
// Agreement is left nil: child agreement is always derived (see ChildAgreement).
func NewChild(parent Parent, pt model.Perturbation) Child {
	f := parent.Fields
	f.ID = pt.ID
	f.Statement = pt.Title
	f.AIAssessment = pt.Label
	if !f.AIAssessment.Valid() {
		f.AIAssessment = model.AIGrading
	}
	f.GroundTruth = pt.GroundTruth
	if !f.GroundTruth.Valid() {
		f.GroundTruth = model.GroundTruthUngraded
	}
	f.Agreement = nil
	if strings.TrimSpace(pt.Topic) != "" {
		f.Topic = pt.Topic
	}
	return Child{
		Fields:           f,
		ParentID:         parent.ID,
		PerturbationType: pt.Type,
		Validity:         pt.Validity,
	}
}
