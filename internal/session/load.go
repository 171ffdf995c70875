package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"verdict-cli/internal/api"
	"verdict-cli/internal/model"
	"verdict-cli/internal/rows"
	"verdict-cli/internal/store"
)

// LoadRequest identifies one topic fetch. Seq orders fetches of the session so that only
// the latest one is applied.
type LoadRequest struct {
	Topic string
	Seq   uint64
}

type LoadResult struct {
	Req           LoadRequest
	Tests         []model.Test
	Perturbations []model.Perturbation
	Err           error
}

type topicData struct {
	tests model.TopicTests
	perts model.PerturbationBatch
}

// SelectTopic switches the dashboard to topic. Switching resets rows, cache, expansion and
// status, restores the local snapshot when there is one, and returns the fetch to run.
// Selecting the active topic while its fetch is in flight returns false.
func (d *Dashboard) SelectTopic(ctx context.Context, topic string) (LoadRequest, bool) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return LoadRequest{}, false
	}
	if topic == d.topic {
		if d.loading {
			return LoadRequest{}, false
		}
		return d.Refresh()
	}

	d.topic = topic
	d.resetTopicState()
	d.restoreSnapshot(ctx)
	return d.beginLoad(), true
}

// Refresh refetches the active topic, keeping the current rows until the result arrives.
func (d *Dashboard) Refresh() (LoadRequest, bool) {
	if d.topic == "" || d.loading {
		return LoadRequest{}, false
	}
	return d.beginLoad(), true
}

func (d *Dashboard) beginLoad() LoadRequest {
	d.loadSeq++
	d.loading = true
	d.log.Debug("topic load started", zap.String("topic", d.topic), zap.Uint64("seq", d.loadSeq))
	return LoadRequest{Topic: d.topic, Seq: d.loadSeq}
}

func (d *Dashboard) restoreSnapshot(ctx context.Context) {
	if d.store == nil {
		return
	}
	ranks, err := d.store.LoadRanks(ctx, d.topic)
	if err != nil {
		d.log.Warn("load ranks failed", zap.String("topic", d.topic), zap.Error(err))
	} else if ranks != nil {
		d.ranks = ranks
	}
	snap, ok, err := d.store.LoadSnapshot(ctx, d.topic)
	if err != nil {
		d.log.Warn("load snapshot failed", zap.String("topic", d.topic), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	d.setParents(snap.Parents)
	d.cache.SetAll(snap.Perturbations)
	d.showCriteriaIfCached()
	d.log.Debug("snapshot restored",
		zap.String("topic", d.topic),
		zap.String("snapshot", snap.ID),
		zap.Int("tests", len(snap.Parents)))
}

// Load fetches a topic's tests and perturbations. Concurrent loads of the same topic share
// one pair of requests.
func (d *Dashboard) Load(ctx context.Context, req LoadRequest) LoadResult {
	v, err, shared := d.loads.Do(req.Topic, func() (any, error) {
		var data topicData
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			t, err := d.svc.FetchTests(gctx, req.Topic)
			data.tests = t
			return err
		})
		g.Go(func() error {
			p, err := d.svc.FetchPerturbations(gctx, req.Topic)
			if api.IsNotFound(err) {
				// A topic nobody has perturbed yet.
				return nil
			}
			data.perts = p
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return data, nil
	})
	if shared {
		d.log.Debug("topic load shared", zap.String("topic", req.Topic))
	}
	if err != nil {
		return LoadResult{Req: req, Err: err}
	}
	data := v.(topicData)
	return LoadResult{Req: req, Tests: data.tests.Tests, Perturbations: data.perts.Perturbations}
}

// ApplyLoad installs a fetch result. Results for a topic other than the active one, or
// for an older fetch of the active topic, are discarded.
func (d *Dashboard) ApplyLoad(ctx context.Context, res LoadResult) Result {
	if res.Req.Topic != d.topic || res.Req.Seq != d.loadSeq {
		d.log.Info("stale topic load discarded",
			zap.String("topic", res.Req.Topic),
			zap.String("active", d.topic),
			zap.Uint64("seq", res.Req.Seq),
			zap.Uint64("latest", d.loadSeq))
		return Result{Stale: true}
	}
	d.loading = false
	if res.Err != nil {
		d.log.Warn("topic load failed", zap.String("topic", d.topic), zap.Error(res.Err))
		return Result{Message: api.Explain(res.Err, fmt.Sprintf("Failed to fetch tests for topic %s", d.topic))}
	}

	d.setParents(rows.ParentsFromTests(res.Tests))
	d.cache.SetAll(rows.Group(res.Perturbations))
	d.table.PruneSelection(d.cache.HasChild)
	d.showCriteriaIfCached()
	d.loaded = true
	d.saveSnapshot(ctx)

	d.log.Info("topic loaded",
		zap.String("topic", d.topic),
		zap.Int("tests", d.table.Len()),
		zap.Int("perturbed", d.cache.Len()))
	return Result{OK: true, Message: fmt.Sprintf("Loaded %d test(s)", d.table.Len())}
}

// setParents installs ps as the canonical sequence, ordered by local manual rank.
func (d *Dashboard) setParents(ps []rows.Parent) {
	byID := make(map[string]rows.Parent, len(ps))
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	ordered := make([]rows.Parent, 0, len(ps))
	for _, id := range store.OrderByRank(ids, d.ranks) {
		ordered = append(ordered, byID[id])
	}
	d.table.SetRows(ordered)
}

func (d *Dashboard) showCriteriaIfCached() {
	if d.cache.Len() > 0 {
		d.table.SetColumnVisible(rows.ColCriteria, true)
	}
}

// IsNotAuthenticated reports whether a load failure needs credentials.
func IsNotAuthenticated(res LoadResult) bool {
	return errors.Is(res.Err, api.ErrNotAuthenticated)
}
