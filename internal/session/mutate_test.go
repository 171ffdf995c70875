package session

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"verdict-cli/internal/api"
	"verdict-cli/internal/model"
	"verdict-cli/internal/rows"
)

func TestGenerate_MergesAndClearsPending(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	svc.generate = func(req api.GenerateRequest) (model.PerturbationBatch, error) {
		return model.PerturbationBatch{Perturbations: []model.Perturbation{
			{ID: "b1", OriginalID: "B", Title: "Wind is not finite", Type: "negation", Label: model.AIPass, GroundTruth: model.GroundTruthAcceptable},
			{ID: "b2", OriginalID: "B", Title: "Wnd is renewable", Type: "typos", Label: model.AIPass, GroundTruth: model.GroundTruthAcceptable},
		}}, nil
	}
	d := New(svc)
	loadTopic(t, d, "Energy")

	call, ok := d.BeginGenerate([]string{"B", "a1", "B", "missing"}, []string{"negation", "typos"})
	if !ok {
		t.Fatalf("expected generation to start")
	}
	if diff := cmp.Diff([]string{"B"}, call.IDs); diff != "" {
		t.Fatalf("requested ids mismatch (-want +got):\n%s", diff)
	}
	if !d.IsGenerating("B") || !d.AnyGenerating() {
		t.Fatalf("expected B to be generating")
	}
	if _, ok := d.BeginGenerate([]string{"B"}, nil); ok {
		t.Fatalf("expected a second request for a generating parent to be refused")
	}

	res := d.ApplyGenerate(ctx, d.Generate(ctx, call))
	if !res.OK || res.Message != "Generated 2 perturbations for 1 test statements" {
		t.Fatalf("unexpected result %+v", res)
	}
	if d.IsGenerating("B") || d.GenerationStatus("B") != rows.StatusSucceeded {
		t.Fatalf("expected B to have succeeded, got %s", d.GenerationStatus("B"))
	}
	if d.Expansion().IsExpanded("B") {
		t.Fatalf("generation must not expand the parent")
	}
	if got := len(d.Cache().Get("B")); got != 2 {
		t.Fatalf("expected 2 cached variants for B, got %d", got)
	}
}

func TestGenerate_FailureClearsPending(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	svc.generate = func(api.GenerateRequest) (model.PerturbationBatch, error) {
		return model.PerturbationBatch{}, errBoom
	}
	d := New(svc)
	loadTopic(t, d, "Energy")

	call, _ := d.BeginGenerate([]string{"A", "C"}, nil)
	res := d.ApplyGenerate(ctx, d.Generate(ctx, call))
	if res.OK || res.Message != "Failed to generate perturbations. Please try again." {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, id := range []string{"A", "C"} {
		if d.IsGenerating(id) || d.GenerationErr(id) == "" {
			t.Fatalf("expected %s to leave generating with an error", id)
		}
	}
	if d.Cache().Len() != 1 {
		t.Fatalf("failed generation must not touch the cache")
	}
	if _, ok := d.BeginGenerate([]string{"A"}, nil); !ok {
		t.Fatalf("expected a retry to be allowed after failure")
	}
}

func TestGenerate_StaleAfterTopicSwitch(t *testing.T) {
	ctx := context.Background()
	d := New(seededService())
	loadTopic(t, d, "Energy")

	call, _ := d.BeginGenerate([]string{"A"}, nil)
	loadTopic(t, d, "Motion")
	if res := d.ApplyGenerate(ctx, d.Generate(ctx, call)); !res.Stale {
		t.Fatalf("expected generation for a previous topic to be stale, got %+v", res)
	}
	if d.AnyGenerating() {
		t.Fatalf("expected topic switch to clear generation state")
	}
}

func TestAssess_OnlyUngradedParents(t *testing.T) {
	ctx := context.Background()
	d := New(seededService())
	loadTopic(t, d, "Energy")

	if _, ok := d.BeginAssess("A", model.GroundTruthAcceptable); ok {
		t.Fatalf("expected a graded parent to be refused")
	}
	call, ok := d.BeginAssess("C", model.GroundTruthUnacceptable)
	if !ok {
		t.Fatalf("expected ungraded C to accept a verdict")
	}
	if !d.MutationPending("C") {
		t.Fatalf("expected C pending")
	}
	if res := d.ApplyAssess(ctx, d.Assess(ctx, call)); !res.OK {
		t.Fatalf("unexpected result %+v", res)
	}
	p, _ := d.Table().Find("C")
	if p.GroundTruth != model.GroundTruthUnacceptable || p.Agreement == nil || !*p.Agreement {
		t.Fatalf("expected C graded with agreement, got %+v", p)
	}
}

func TestEdit_StatementChangeRequestsReload(t *testing.T) {
	ctx := context.Background()
	d := New(seededService())
	loadTopic(t, d, "Energy")

	call, ok := d.BeginEdit("B", "Wind power is renewable", model.GroundTruthAcceptable)
	if !ok {
		t.Fatalf("expected edit to start")
	}
	res := d.ApplyEdit(ctx, d.Edit(ctx, call))
	if !res.OK || !res.Reload {
		t.Fatalf("expected a reload after a statement change, got %+v", res)
	}
	if p, _ := d.Table().Find("B"); p.AIAssessment != model.AIGrading {
		t.Fatalf("expected B to be grading, got %s", p.AIAssessment)
	}
	if _, ok := d.BeginEdit("B", "  ", model.GroundTruthAcceptable); ok {
		t.Fatalf("expected an empty statement to be refused")
	}
}

func TestEdit_FailureRecordsError(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	svc.failOn["EditTest:B"] = &api.RequestError{Status: 422, Detail: "statement too short"}
	d := New(svc)
	loadTopic(t, d, "Energy")

	call, _ := d.BeginEdit("B", "x", model.GroundTruthAcceptable)
	res := d.ApplyEdit(ctx, d.Edit(ctx, call))
	if res.OK || res.Message != "statement too short" {
		t.Fatalf("unexpected result %+v", res)
	}
	if d.MutationPending("B") || d.MutationErr("B") != "statement too short" {
		t.Fatalf("expected B failed with the server detail")
	}
	if p, _ := d.Table().Find("B"); p.Statement != "Wind is renewable" {
		t.Fatalf("failed edit must not change the row, got %q", p.Statement)
	}
}

func TestDelete_PartialFailure(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	svc.failOn["DeleteTest:B"] = errBoom
	d := New(svc)
	loadTopic(t, d, "Energy")
	d.ToggleExpanded("A")
	d.Table().SetSelected("A", true)

	call, ok := d.BeginDelete([]string{"A", "B"})
	if !ok {
		t.Fatalf("expected delete to start")
	}
	res := d.ApplyDelete(ctx, d.Delete(ctx, call))
	if !res.OK || res.Message != "Deleted 1 test(s); failed: B" {
		t.Fatalf("unexpected result %+v", res)
	}
	if diff := cmp.Diff([]string{"B", "C"}, canonicalIDs(d)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if d.Cache().Has("A") || d.Expansion().IsExpanded("A") || d.Table().IsSelected("A") {
		t.Fatalf("expected every trace of A to be dropped")
	}
	if d.MutationErr("B") == "" {
		t.Fatalf("expected B to record its failure")
	}
}

func TestAutoGrade_RestoresOnFailure(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	svc.autoGrade = func([]string) (model.AutoGradeResult, error) {
		return model.AutoGradeResult{}, errBoom
	}
	d := New(svc)
	loadTopic(t, d, "Energy")

	call, ok := d.BeginAutoGrade([]string{"A", "B"})
	if !ok {
		t.Fatalf("expected auto-grade to start")
	}
	if p, _ := d.Table().Find("A"); p.AIAssessment != model.AIGrading {
		t.Fatalf("expected A to be optimistically grading")
	}
	res := d.ApplyAutoGrade(ctx, d.AutoGrade(ctx, call))
	if res.OK || res.Reload {
		t.Fatalf("unexpected result %+v", res)
	}
	if p, _ := d.Table().Find("A"); p.AIAssessment != model.AIFail || p.Agreement == nil {
		t.Fatalf("expected A restored, got %+v", p)
	}
}

func TestAutoGrade_SuccessRequestsReload(t *testing.T) {
	ctx := context.Background()
	d := New(seededService())
	loadTopic(t, d, "Energy")

	call, _ := d.BeginAutoGrade([]string{"C"})
	res := d.ApplyAutoGrade(ctx, d.AutoGrade(ctx, call))
	if !res.OK || !res.Reload || res.Message != "Successfully graded 1 test(s)" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAutoGrade_SecondRequestForPendingRowRefused(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	svc.autoGrade = func([]string) (model.AutoGradeResult, error) {
		return model.AutoGradeResult{}, errBoom
	}
	d := New(svc)
	loadTopic(t, d, "Energy")

	first, ok := d.BeginAutoGrade([]string{"A"})
	if !ok {
		t.Fatalf("expected auto-grade to start")
	}
	if _, ok := d.BeginAutoGrade([]string{"A"}); ok {
		t.Fatalf("expected a second auto-grade of a grading row to be refused")
	}
	second, ok := d.BeginAutoGrade([]string{"A", "B"})
	if !ok {
		t.Fatalf("expected B to start grading")
	}
	if diff := cmp.Diff([]string{"B"}, second.IDs); diff != "" {
		t.Fatalf("second request ids mismatch (-want +got):\n%s", diff)
	}
	if _, ok := d.BeginAssess("A", model.GroundTruthAcceptable); ok {
		t.Fatalf("expected assess to wait for the pending auto-grade")
	}

	d.ApplyAutoGrade(ctx, d.AutoGrade(ctx, first))
	d.ApplyAutoGrade(ctx, d.AutoGrade(ctx, second))

	want := map[string]model.AIAssessment{"A": model.AIFail, "B": model.AIPass}
	for id, ai := range want {
		p, _ := d.Table().Find(id)
		if p.AIAssessment != ai || p.Agreement == nil {
			t.Fatalf("expected %s restored to %s, got %+v", id, ai, p)
		}
		if d.MutationPending(id) || d.MutationErr(id) != "Failed to auto-grade tests" {
			t.Fatalf("expected %s to settle with the failure, status=%s", id, d.mut.Get(id))
		}
	}
	if _, ok := d.BeginAutoGrade([]string{"A"}); !ok {
		t.Fatalf("expected a retry after failure to be allowed")
	}
}

func TestGenerate_ResponseFromEarlierVisitIgnored(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	svc.generate = func(req api.GenerateRequest) (model.PerturbationBatch, error) {
		return model.PerturbationBatch{Perturbations: []model.Perturbation{
			{ID: "a9", OriginalID: "A", Title: "Solar panels never work at night", Type: "negation", Label: model.AIPass},
		}}, nil
	}
	d := New(svc)
	loadTopic(t, d, "Energy")

	old, _ := d.BeginGenerate([]string{"A"}, []string{"negation"})
	oldRes := d.Generate(ctx, old)
	loadTopic(t, d, "Motion")
	loadTopic(t, d, "Energy")
	fresh, ok := d.BeginGenerate([]string{"A"}, []string{"negation"})
	if !ok {
		t.Fatalf("expected a new generation after returning to the topic")
	}

	if res := d.ApplyGenerate(ctx, oldRes); !res.Stale {
		t.Fatalf("expected the earlier visit's response to be stale, got %+v", res)
	}
	if !d.IsGenerating("A") {
		t.Fatalf("stale response cleared the pending marker, status=%s", d.GenerationStatus("A"))
	}
	if got := len(d.Cache().Get("A")); got != 1 {
		t.Fatalf("stale response must not touch the cache, got %d variants", got)
	}
	if res := d.ApplyGenerate(ctx, d.Generate(ctx, fresh)); !res.OK {
		t.Fatalf("unexpected result %+v", res)
	}
	if d.IsGenerating("A") {
		t.Fatalf("expected the fresh response to settle A")
	}
}

func TestMutations_ResponseFromEarlierVisitIgnored(t *testing.T) {
	ctx := context.Background()
	svc := seededService()
	svc.autoGrade = func([]string) (model.AutoGradeResult, error) {
		return model.AutoGradeResult{}, errBoom
	}
	d := New(svc)
	loadTopic(t, d, "Energy")

	assess, _ := d.BeginAssess("C", model.GroundTruthAcceptable)
	edit, _ := d.BeginEdit("B", "Wind power is renewable", model.GroundTruthAcceptable)
	del, _ := d.BeginDelete([]string{"A"})
	loadTopic(t, d, "Motion")
	loadTopic(t, d, "Energy")
	grade, ok := d.BeginAutoGrade([]string{"C"})
	if !ok {
		t.Fatalf("expected auto-grade to start after returning")
	}

	results := []Result{
		d.ApplyAssess(ctx, d.Assess(ctx, assess)),
		d.ApplyEdit(ctx, d.Edit(ctx, edit)),
		d.ApplyDelete(ctx, d.Delete(ctx, del)),
	}
	for i, res := range results {
		if !res.Stale {
			t.Fatalf("result %d: expected stale, got %+v", i, res)
		}
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, canonicalIDs(d)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if p, _ := d.Table().Find("C"); p.GroundTruth != model.GroundTruthUngraded || p.AIAssessment != model.AIGrading {
		t.Fatalf("stale assess must not touch C, got %+v", p)
	}
	if !d.MutationPending("C") {
		t.Fatalf("stale assess cleared the auto-grade pending marker")
	}
	d.ApplyAutoGrade(ctx, d.AutoGrade(ctx, grade))
	if p, _ := d.Table().Find("C"); p.AIAssessment != model.AIFail {
		t.Fatalf("expected C restored, got %+v", p)
	}
}
