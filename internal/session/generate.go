package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"verdict-cli/internal/api"
	"verdict-cli/internal/model"
	"verdict-cli/internal/rows"
)

// GenerateCall is one "analyze AI behavior" request for a set of parents.
type GenerateCall struct {
	Topic string
	Epoch uint64
	IDs   []string
	Types []string
}

type GenerateResult struct {
	Call  GenerateCall
	Batch model.PerturbationBatch
	Err   error
}

// BeginGenerate marks the requested parents as generating. Parents already generating,
// children and unknown ids are skipped; ok is false when nothing is left to request.
func (d *Dashboard) BeginGenerate(ids, types []string) (GenerateCall, bool) {
	if d.topic == "" {
		return GenerateCall{}, false
	}
	started := d.gen.Begin(d.parentIDs(ids)...)
	if len(started) == 0 {
		return GenerateCall{}, false
	}
	return GenerateCall{Topic: d.topic, Epoch: d.epoch, IDs: started, Types: append([]string(nil), types...)}, true
}

func (d *Dashboard) Generate(ctx context.Context, call GenerateCall) GenerateResult {
	batch, err := d.svc.GeneratePerturbations(ctx, api.GenerateRequest{
		Topic:         call.Topic,
		TestIDs:       call.IDs,
		CriteriaTypes: call.Types,
	})
	return GenerateResult{Call: call, Batch: batch, Err: err}
}

// ApplyGenerate merges a generated batch into the cache. The requested parents leave the
// generating state on both paths.
func (d *Dashboard) ApplyGenerate(ctx context.Context, res GenerateResult) Result {
	if !d.current(res.Call.Topic, res.Call.Epoch) {
		d.log.Info("stale generation discarded", zap.String("topic", res.Call.Topic), zap.String("active", d.topic))
		return Result{Stale: true}
	}
	if res.Err != nil {
		msg := api.Explain(res.Err, "Failed to generate perturbations. Please try again.")
		d.gen.Fail(msg, res.Call.IDs...)
		d.log.Warn("generation failed",
			zap.String("topic", d.topic),
			zap.Int("tests", len(res.Call.IDs)),
			zap.Error(res.Err))
		return Result{Message: msg}
	}

	mapping := rows.Group(res.Batch.Perturbations)
	added, replaced := d.cache.Merge(mapping)
	d.gen.Succeed(res.Call.IDs...)
	d.table.SetColumnVisible(rows.ColCriteria, true)
	d.saveSnapshot(ctx)

	d.log.Info("perturbations merged",
		zap.String("topic", d.topic),
		zap.Int("added", added),
		zap.Int("replaced", replaced))
	return Result{
		OK:      true,
		Message: fmt.Sprintf("Generated %d perturbations for %d test statements", len(res.Batch.Perturbations), len(res.Call.IDs)),
	}
}
