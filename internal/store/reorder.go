package store

import (
	"errors"
	"sort"
	"strings"
)

// Ranked is one parent row of a topic's manual order.
type Ranked struct {
	ID   string
	Rank string
}

// ReorderResult holds the rank updates needed to realize a move. RankByID only contains
// ids whose rank changes.
type ReorderResult struct {
	RankByID map[string]string
	// Reseeded is set when existing ranks could not express the order and every row got
	// a fresh rank.
	Reseeded bool
}

// OrderByRank orders ids (server order) by their local rank. Ranked ids come first in rank
// order; ids without a rank keep their server order after them.
func OrderByRank(ids []string, ranks map[string]string) []string {
	type entry struct {
		id   string
		rank string
		pos  int
	}
	var ranked, rest []entry
	for i, id := range ids {
		r := normalizeRank(ranks[id])
		if r == "" {
			rest = append(rest, entry{id: id, pos: i})
			continue
		}
		ranked = append(ranked, entry{id: id, rank: r, pos: i})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].rank != ranked[j].rank {
			return ranked[i].rank < ranked[j].rank
		}
		return ranked[i].pos < ranked[j].pos
	})
	out := make([]string, 0, len(ids))
	for _, e := range ranked {
		out = append(out, e.id)
	}
	for _, e := range rest {
		out = append(out, e.id)
	}
	return out
}

// PlanReorderRanks plans the rank updates for moving movedID within order, where insertAt
// is the target index after the moved row has been removed (array-move semantics).
//
// The moved row alone is re-ranked between its new neighbours when their ranks allow it.
// Otherwise the smallest window around the insertion point with usable outer bounds is
// re-ranked. Rows missing a rank force a full reseed of the final order.
func PlanReorderRanks(order []Ranked, movedID string, insertAt int) (ReorderResult, error) {
	movedID = strings.TrimSpace(movedID)
	if movedID == "" {
		return ReorderResult{}, errors.New("missing moved id")
	}
	from := -1
	for i, r := range order {
		if r.ID == movedID {
			from = i
			break
		}
	}
	if from < 0 {
		return ReorderResult{}, errors.New("moved row not found in order")
	}

	rest := make([]Ranked, 0, len(order)-1)
	rest = append(rest, order[:from]...)
	rest = append(rest, order[from+1:]...)
	if insertAt < 0 {
		insertAt = 0
	}
	if insertAt > len(rest) {
		insertAt = len(rest)
	}
	final := make([]Ranked, 0, len(order))
	final = append(final, rest[:insertAt]...)
	final = append(final, order[from])
	final = append(final, rest[insertAt:]...)

	if !allRanked(order) {
		ids := make([]string, 0, len(final))
		for _, r := range final {
			ids = append(ids, r.ID)
		}
		return ReorderResult{RankByID: SeedRanks(ids), Reseeded: true}, nil
	}
	if insertAt == from {
		return ReorderResult{RankByID: map[string]string{}}, nil
	}

	if r, ok := rankForSlot(final, insertAt, map[string]bool{movedID: true}); ok {
		res := ReorderResult{RankByID: map[string]string{}}
		if normalizeRank(order[from].Rank) != r {
			res.RankByID[movedID] = r
		}
		return res, nil
	}

	lo, hi := minimalWindow(final, insertAt, insertAt < from)
	skip := map[string]bool{}
	for i := lo; i <= hi; i++ {
		skip[final[i].ID] = true
	}
	taken := takenRanks(final, skip)
	lower, upper := outerBounds(final, lo, hi)
	res := ReorderResult{RankByID: map[string]string{}}
	for i := lo; i <= hi; i++ {
		r, err := RankBetweenUnique(taken, lower, upper)
		if err != nil {
			return ReorderResult{}, err
		}
		taken[r] = true
		res.RankByID[final[i].ID] = r
		lower = r
	}
	return res, nil
}

func allRanked(order []Ranked) bool {
	for _, r := range order {
		if normalizeRank(r.Rank) == "" {
			return false
		}
	}
	return true
}

func takenRanks(rs []Ranked, skip map[string]bool) map[string]bool {
	out := map[string]bool{}
	for _, r := range rs {
		if skip[r.ID] {
			continue
		}
		if n := normalizeRank(r.Rank); n != "" {
			out[n] = true
		}
	}
	return out
}

func outerBounds(final []Ranked, lo, hi int) (lower, upper string) {
	if lo > 0 {
		lower = normalizeRank(final[lo-1].Rank)
	}
	if hi+1 < len(final) {
		upper = normalizeRank(final[hi+1].Rank)
	}
	return lower, upper
}

// rankForSlot ranks final[idx] between its neighbours, reporting false when the neighbour
// ranks leave no room.
func rankForSlot(final []Ranked, idx int, skip map[string]bool) (string, bool) {
	lower, upper := outerBounds(final, idx, idx)
	if lower != "" && upper != "" && lower >= upper {
		return "", false
	}
	r, err := RankBetweenUnique(takenRanks(final, skip), lower, upper)
	if err != nil {
		return "", false
	}
	return r, true
}

// minimalWindow finds the smallest [lo, hi] containing idx whose outer bounds are open or
// strictly increasing. preferRight breaks ties towards windows extending right of idx.
func minimalWindow(final []Ranked, idx int, preferRight bool) (lo, hi int) {
	usable := func(lo, hi int) bool {
		lower, upper := outerBounds(final, lo, hi)
		if lower == "" || upper == "" {
			return true
		}
		if lower >= upper {
			return false
		}
		_, err := RankBetween(lower, upper)
		return err == nil
	}
	n := len(final)
	for size := 1; size <= n; size++ {
		first := idx - size + 1
		if first < 0 {
			first = 0
		}
		last := idx
		if last+size > n {
			last = n - size
		}
		if preferRight {
			for lo := last; lo >= first; lo-- {
				if usable(lo, lo+size-1) {
					return lo, lo + size - 1
				}
			}
			continue
		}
		for lo := first; lo <= last; lo++ {
			if usable(lo, lo+size-1) {
				return lo, lo + size - 1
			}
		}
	}
	return 0, n - 1
}
