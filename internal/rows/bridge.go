package rows

import (
	"strings"

	"verdict-cli/internal/model"
)

// Agreement is the derived agreement badge of a row.
type Agreement int

const (
	AgreementPending Agreement = iota
	AgreementMatch
	AgreementMismatch
)

func (a Agreement) String() string {
	switch a {
	case AgreementMatch:
		return "match"
	case AgreementMismatch:
		return "mismatch"
	default:
		return "pending"
	}
}

// ComputeAgreement compares an AI verdict with a human one. It returns nil while either
// side is not final (AI grading, or human ungraded).
func ComputeAgreement(ai model.AIAssessment, gt model.GroundTruth) *bool {
	aiGT, ok := ai.AsGroundTruth()
	if !ok || !gt.Graded() {
		return nil
	}
	return model.BoolPtr(aiGT == gt)
}

// ParentAgreement is pending while the AI is grading, the human has not graded, or no
// agreement is stored.
func ParentAgreement(p Parent) Agreement {
	if p.AIAssessment == model.AIGrading || p.GroundTruth == model.GroundTruthUngraded || p.Agreement == nil {
		return AgreementPending
	}
	if *p.Agreement {
		return AgreementMatch
	}
	return AgreementMismatch
}

// ChildAgreement is never stored. It is pending when the parent is ungraded or the child is
// still grading; otherwise it compares the child's AI verdict with the child's own ground truth.
func ChildAgreement(parent Parent, c Child) Agreement {
	if parent.GroundTruth == model.GroundTruthUngraded || c.AIAssessment == model.AIGrading {
		return AgreementPending
	}
	aiGT, ok := c.AIAssessment.AsGroundTruth()
	if !ok {
		return AgreementPending
	}
	if aiGT == c.GroundTruth {
		return AgreementMatch
	}
	return AgreementMismatch
}

// CanAssess reports whether a human verdict may be recorded for id: it must be an ungraded
// parent.
func CanAssess(t *Table, id string) bool {
	p, ok := t.Find(id)
	return ok && p.GroundTruth == model.GroundTruthUngraded
}

// ApplyAssessment records a confirmed human verdict on an ungraded parent and recomputes its
// agreement. Any other target is left untouched.
func ApplyAssessment(t *Table, parentID string, gt model.GroundTruth) bool {
	if !gt.Graded() || !CanAssess(t, parentID) {
		return false
	}
	return t.Update(parentID, func(p *Parent) {
		p.GroundTruth = gt
		p.Agreement = ComputeAgreement(p.AIAssessment, gt)
	})
}

// ApplyStatementEdit records a confirmed edit. A changed statement invalidates the AI verdict
// until it is re-graded remotely: AIAssessment becomes grading and Agreement nil.
// regrade reports whether that happened.
func ApplyStatementEdit(t *Table, id, text string, gt model.GroundTruth) (regrade, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" || !gt.Valid() {
		return false, false
	}
	ok = t.Update(id, func(p *Parent) {
		if text != strings.TrimSpace(p.Statement) {
			regrade = true
			p.Statement = text
			p.AIAssessment = model.AIGrading
			p.Agreement = nil
		}
		p.GroundTruth = gt
		if !regrade {
			p.Agreement = ComputeAgreement(p.AIAssessment, gt)
		}
	})
	return regrade, ok
}

// AssessmentSnapshot is the AI-side state of a parent before an optimistic grading mark.
type AssessmentSnapshot struct {
	AIAssessment model.AIAssessment
	Agreement    *bool
}

// MarkGrading optimistically flags parents as grading and returns what to restore if the
// request fails. Unknown ids are skipped.
func MarkGrading(t *Table, ids []string) map[string]AssessmentSnapshot {
	snap := map[string]AssessmentSnapshot{}
	for _, id := range ids {
		p, ok := t.Find(id)
		if !ok {
			continue
		}
		if _, dup := snap[p.ID]; dup {
			continue
		}
		snap[p.ID] = AssessmentSnapshot{AIAssessment: p.AIAssessment, Agreement: p.Agreement}
		t.Update(p.ID, func(p *Parent) {
			p.AIAssessment = model.AIGrading
			p.Agreement = nil
		})
	}
	return snap
}

// RestoreAssessments undoes MarkGrading for rows still present.
func RestoreAssessments(t *Table, snap map[string]AssessmentSnapshot) {
	for id, s := range snap {
		t.Update(id, func(p *Parent) {
			p.AIAssessment = s.AIAssessment
			p.Agreement = s.Agreement
		})
	}
}

// ApplyDelete removes confirmed deletions from the canonical sequence and forgets their
// cached variants and expansion. It returns how many parents were removed.
func ApplyDelete(t *Table, cache *Cache, exp *Expansion, ids []string) int {
	n := t.Remove(ids...)
	cache.Drop(ids...)
	for _, id := range ids {
		exp.Collapse(id)
	}
	return n
}
