package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"verdict-cli/internal/api"
	"verdict-cli/internal/model"
	"verdict-cli/internal/rows"
)

const deleteConcurrency = 4

type AssessCall struct {
	Topic       string
	Epoch       uint64
	ID          string
	GroundTruth model.GroundTruth
}

type AssessResult struct {
	Call AssessCall
	Err  error
}

// BeginAssess starts recording a human verdict. Only ungraded parents accept one.
func (d *Dashboard) BeginAssess(id string, gt model.GroundTruth) (AssessCall, bool) {
	id = strings.TrimSpace(id)
	if !gt.Graded() || !rows.CanAssess(d.table, id) {
		return AssessCall{}, false
	}
	if len(d.mut.Begin(id)) == 0 {
		return AssessCall{}, false
	}
	return AssessCall{Topic: d.topic, Epoch: d.epoch, ID: id, GroundTruth: gt}, true
}

func (d *Dashboard) Assess(ctx context.Context, call AssessCall) AssessResult {
	return AssessResult{Call: call, Err: d.svc.Assess(ctx, call.ID, call.GroundTruth)}
}

func (d *Dashboard) ApplyAssess(ctx context.Context, res AssessResult) Result {
	if !d.current(res.Call.Topic, res.Call.Epoch) {
		return Result{Stale: true}
	}
	if res.Err != nil {
		msg := api.Explain(res.Err, "Failed to update assessment")
		d.mut.Fail(msg, res.Call.ID)
		d.log.Warn("assessment failed", zap.String("id", res.Call.ID), zap.Error(res.Err))
		return Result{Message: msg}
	}
	d.mut.Succeed(res.Call.ID)
	if !rows.ApplyAssessment(d.table, res.Call.ID, res.Call.GroundTruth) {
		return Result{OK: true, Reload: true, Message: "Assessment saved"}
	}
	d.saveSnapshot(ctx)
	return Result{OK: true, Message: fmt.Sprintf("Marked %s", res.Call.GroundTruth)}
}

type EditCall struct {
	Topic       string
	Epoch       uint64
	ID          string
	Statement   string
	GroundTruth model.GroundTruth
}

type EditResult struct {
	Call EditCall
	Err  error
}

// BeginEdit starts an edit of a parent's statement and ground truth.
func (d *Dashboard) BeginEdit(id, statement string, gt model.GroundTruth) (EditCall, bool) {
	id = strings.TrimSpace(id)
	statement = strings.TrimSpace(statement)
	if statement == "" || !gt.Valid() {
		return EditCall{}, false
	}
	if _, ok := d.table.Find(id); !ok {
		return EditCall{}, false
	}
	if len(d.mut.Begin(id)) == 0 {
		return EditCall{}, false
	}
	return EditCall{Topic: d.topic, Epoch: d.epoch, ID: id, Statement: statement, GroundTruth: gt}, true
}

func (d *Dashboard) Edit(ctx context.Context, call EditCall) EditResult {
	return EditResult{Call: call, Err: d.svc.EditTest(ctx, call.ID, call.Statement, call.GroundTruth)}
}

// ApplyEdit records a confirmed edit. A changed statement puts the row back into grading
// and asks the caller to reload once the service has re-graded it.
func (d *Dashboard) ApplyEdit(ctx context.Context, res EditResult) Result {
	if !d.current(res.Call.Topic, res.Call.Epoch) {
		return Result{Stale: true}
	}
	if res.Err != nil {
		msg := api.Explain(res.Err, "Failed to edit test")
		d.mut.Fail(msg, res.Call.ID)
		d.log.Warn("edit failed", zap.String("id", res.Call.ID), zap.Error(res.Err))
		return Result{Message: msg}
	}
	d.mut.Succeed(res.Call.ID)
	regrade, ok := rows.ApplyStatementEdit(d.table, res.Call.ID, res.Call.Statement, res.Call.GroundTruth)
	if !ok {
		return Result{OK: true, Reload: true, Message: "Test updated"}
	}
	d.saveSnapshot(ctx)
	if regrade {
		return Result{OK: true, Reload: true, Message: "Test updated; re-grading"}
	}
	return Result{OK: true, Message: "Test updated"}
}

type DeleteCall struct {
	Topic string
	Epoch uint64
	IDs   []string
}

type DeleteResult struct {
	Call    DeleteCall
	Deleted []string
	Failed  map[string]error
}

func (d *Dashboard) BeginDelete(ids []string) (DeleteCall, bool) {
	started := d.mut.Begin(d.parentIDs(ids)...)
	if len(started) == 0 {
		return DeleteCall{}, false
	}
	return DeleteCall{Topic: d.topic, Epoch: d.epoch, IDs: started}, true
}

// Delete removes each test remotely, a few at a time. One failure does not stop the others.
func (d *Dashboard) Delete(ctx context.Context, call DeleteCall) DeleteResult {
	res := DeleteResult{Call: call, Failed: map[string]error{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)
	for _, id := range call.IDs {
		id := id
		g.Go(func() error {
			err := d.svc.DeleteTest(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[id] = err
				return nil
			}
			res.Deleted = append(res.Deleted, id)
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(res.Deleted)
	return res
}

// ApplyDelete removes the ids whose remote delete succeeded.
func (d *Dashboard) ApplyDelete(ctx context.Context, res DeleteResult) Result {
	if !d.current(res.Call.Topic, res.Call.Epoch) {
		return Result{Stale: true}
	}
	d.mut.Reset(res.Deleted...)
	n := rows.ApplyDelete(d.table, d.cache, d.exp, res.Deleted)
	d.table.PruneSelection(d.cache.HasChild)
	for _, id := range res.Deleted {
		delete(d.ranks, id)
	}
	if d.store != nil && len(res.Deleted) > 0 {
		if err := d.store.ForgetTests(ctx, d.topic, res.Deleted); err != nil {
			d.log.Warn("forget deleted tests failed", zap.String("topic", d.topic), zap.Error(err))
		}
	}
	if len(res.Failed) == 0 {
		return Result{OK: true, Message: fmt.Sprintf("Deleted %d test(s)", n)}
	}
	failed := make([]string, 0, len(res.Failed))
	for id, err := range res.Failed {
		msg := api.Explain(err, "Failed to delete test")
		d.mut.Fail(msg, id)
		failed = append(failed, id)
		d.log.Warn("delete failed", zap.String("id", id), zap.Error(err))
	}
	sort.Strings(failed)
	return Result{
		OK:      n > 0,
		Message: fmt.Sprintf("Deleted %d test(s); failed: %s", n, strings.Join(failed, ", ")),
	}
}

type AutoGradeCall struct {
	Topic    string
	Epoch    uint64
	IDs      []string
	Snapshot map[string]rows.AssessmentSnapshot
}

type AutoGradeResult struct {
	Call   AutoGradeCall
	Graded model.AutoGradeResult
	Err    error
}

// BeginAutoGrade optimistically puts the requested parents into grading. Parents with a
// mutation already in flight are skipped so a second request never snapshots the
// optimistic state of the first.
func (d *Dashboard) BeginAutoGrade(ids []string) (AutoGradeCall, bool) {
	started := d.mut.Begin(d.parentIDs(ids)...)
	if len(started) == 0 {
		return AutoGradeCall{}, false
	}
	return AutoGradeCall{
		Topic:    d.topic,
		Epoch:    d.epoch,
		IDs:      started,
		Snapshot: rows.MarkGrading(d.table, started),
	}, true
}

func (d *Dashboard) AutoGrade(ctx context.Context, call AutoGradeCall) AutoGradeResult {
	out, err := d.svc.AutoGrade(ctx, call.IDs)
	return AutoGradeResult{Call: call, Graded: out, Err: err}
}

// ApplyAutoGrade restores the previous verdicts on failure; on success it asks for a
// reload to pick up the new ones.
func (d *Dashboard) ApplyAutoGrade(ctx context.Context, res AutoGradeResult) Result {
	if !d.current(res.Call.Topic, res.Call.Epoch) {
		return Result{Stale: true}
	}
	if res.Err != nil {
		rows.RestoreAssessments(d.table, res.Call.Snapshot)
		msg := api.Explain(res.Err, "Failed to auto-grade tests")
		d.mut.Fail(msg, res.Call.IDs...)
		d.log.Warn("auto-grade failed", zap.Int("tests", len(res.Call.IDs)), zap.Error(res.Err))
		return Result{Message: msg}
	}
	d.mut.Succeed(res.Call.IDs...)
	return Result{OK: true, Reload: true, Message: fmt.Sprintf("Successfully graded %d test(s)", res.Graded.GradedCount)}
}
