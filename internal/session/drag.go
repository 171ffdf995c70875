package session

import (
	"context"

	"go.uber.org/zap"

	"verdict-cli/internal/rows"
	"verdict-cli/internal/store"
)

func (d *Dashboard) DragStart(id string) bool { return d.drag.Start(d.View(), id) }
func (d *Dashboard) DragOver(id string)       { d.drag.Over(id) }
func (d *Dashboard) DragCancel()              { d.drag.Cancel() }

// Dragging returns the id of the row being dragged and the current drop target.
func (d *Dashboard) Dragging() (active, over string, ok bool) {
	active, ok = d.drag.Active()
	return active, d.drag.OverID(), ok
}

// DragDrop finishes the current gesture onto the tracked target.
func (d *Dashboard) DragDrop(ctx context.Context) bool {
	active, _ := d.drag.Active()
	return d.DragMove(ctx, active, d.drag.OverID())
}

// DragMove moves the parent activeID to the canonical position of overID and persists the
// new manual order. It reports whether the order changed.
func (d *Dashboard) DragMove(ctx context.Context, activeID, overID string) bool {
	before := d.table.Rows()
	to := d.table.IndexOf(overID)
	if !d.drag.End(d.table, d.View(), activeID, overID) {
		return false
	}
	d.persistMove(ctx, before, activeID, to)
	return true
}

// MoveBy moves a parent delta places within the visible page.
func (d *Dashboard) MoveBy(ctx context.Context, id string, delta int) bool {
	ps := d.View().Parents()
	for i, p := range ps {
		if p.ID != id {
			continue
		}
		j := i + delta
		if j < 0 || j >= len(ps) {
			return false
		}
		return d.DragMove(ctx, id, ps[j].ID)
	}
	return false
}

func (d *Dashboard) persistMove(ctx context.Context, before []rows.Parent, movedID string, insertAt int) {
	order := make([]store.Ranked, 0, len(before))
	for _, p := range before {
		order = append(order, store.Ranked{ID: p.ID, Rank: d.ranks[p.ID]})
	}
	plan, err := store.PlanReorderRanks(order, movedID, insertAt)
	if err != nil {
		d.log.Warn("plan reorder failed", zap.String("id", movedID), zap.Error(err))
		return
	}
	for id, r := range plan.RankByID {
		d.ranks[id] = r
	}
	if plan.Reseeded {
		d.log.Debug("manual order reseeded", zap.String("topic", d.topic), zap.Int("rows", len(order)))
	}
	if d.store != nil && len(plan.RankByID) > 0 {
		if err := d.store.SaveRanks(ctx, d.topic, plan.RankByID); err != nil {
			d.log.Warn("save ranks failed", zap.String("topic", d.topic), zap.Error(err))
		}
	}
	d.saveSnapshot(ctx)
}
