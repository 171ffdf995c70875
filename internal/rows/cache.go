package rows

import (
	"sort"
	"strings"

	"verdict-cli/internal/model"
)

// Cache maps a parent row id to its perturbations, holding at most one perturbation per
// (parent id, perturbation type). Order within a parent is insertion order.
//
// A Cache is scoped to one topic session; it is reset with SetAll on topic switch.
// The zero value is not usable; use NewCache. Read methods tolerate a nil receiver.
type Cache struct {
	byParent map[string][]model.Perturbation
}

func NewCache() *Cache {
	return &Cache{byParent: map[string][]model.Perturbation{}}
}

// Group buckets a flat perturbation list by OriginalID, deduplicating by type within each
// bucket with the same upsert rule as Merge. Records without an OriginalID are dropped.
func Group(perts []model.Perturbation) map[string][]model.Perturbation {
	out := map[string][]model.Perturbation{}
	for _, pt := range perts {
		pid := strings.TrimSpace(pt.OriginalID)
		if pid == "" {
			continue
		}
		out[pid], _ = upsertByType(out[pid], pt)
	}
	return out
}

// SetAll replaces the entire cache. It is the only operation that may drop entries
// unrelated to its input.
func (c *Cache) SetAll(mapping map[string][]model.Perturbation) {
	next := make(map[string][]model.Perturbation, len(mapping))
	for pid, list := range mapping {
		pid = strings.TrimSpace(pid)
		if pid == "" {
			continue
		}
		var merged []model.Perturbation
		for _, pt := range list {
			merged, _ = upsertByType(merged, pt)
		}
		if len(merged) > 0 {
			next[pid] = merged
		}
	}
	c.byParent = next
}

// Merge upserts every perturbation of mapping into the entry of its parent, keyed by type:
// an existing type is replaced in place, a new type is appended. Types and parents absent
// from mapping are untouched. Applying the same mapping twice is a no-op the second time.
func (c *Cache) Merge(mapping map[string][]model.Perturbation) (added, replaced int) {
	if c.byParent == nil {
		c.byParent = map[string][]model.Perturbation{}
	}
	for pid, list := range mapping {
		pid = strings.TrimSpace(pid)
		if pid == "" || len(list) == 0 {
			continue
		}
		cur := append([]model.Perturbation(nil), c.byParent[pid]...)
		for _, pt := range list {
			var wasReplace bool
			cur, wasReplace = upsertByType(cur, pt)
			if wasReplace {
				replaced++
			} else {
				added++
			}
		}
		c.byParent[pid] = cur
	}
	return added, replaced
}

// Get returns a copy of the perturbations cached for parentID, or an empty list.
func (c *Cache) Get(parentID string) []model.Perturbation {
	if c == nil {
		return []model.Perturbation{}
	}
	list := c.byParent[strings.TrimSpace(parentID)]
	return append([]model.Perturbation{}, list...)
}

// Has reports whether parentID has at least one cached perturbation.
func (c *Cache) Has(parentID string) bool {
	if c == nil {
		return false
	}
	return len(c.byParent[strings.TrimSpace(parentID)]) > 0
}

// HasChild reports whether a cached perturbation has id.
func (c *Cache) HasChild(id string) bool {
	if c == nil {
		return false
	}
	id = strings.TrimSpace(id)
	for _, list := range c.byParent {
		for _, pt := range list {
			if pt.ID == id {
				return true
			}
		}
	}
	return false
}

// Drop removes the entries of deleted parents.
func (c *Cache) Drop(parentIDs ...string) {
	if c == nil {
		return
	}
	for _, id := range parentIDs {
		delete(c.byParent, strings.TrimSpace(id))
	}
}

// Len is the number of parents with cached perturbations.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byParent)
}

// Types returns the distinct perturbation types present, sorted.
func (c *Cache) Types() []string {
	if c == nil {
		return nil
	}
	set := map[string]bool{}
	for _, list := range c.byParent {
		for _, pt := range list {
			set[pt.Type] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a deep copy of the cache contents.
func (c *Cache) Snapshot() map[string][]model.Perturbation {
	out := map[string][]model.Perturbation{}
	if c == nil {
		return out
	}
	for pid, list := range c.byParent {
		out[pid] = append([]model.Perturbation(nil), list...)
	}
	return out
}

func typeKey(pt model.Perturbation) string {
	return strings.TrimSpace(pt.Type)
}

func upsertByType(list []model.Perturbation, pt model.Perturbation) ([]model.Perturbation, bool) {
	key := typeKey(pt)
	for i := range list {
		if typeKey(list[i]) == key {
			list[i] = pt
			return list, true
		}
	}
	return append(list, pt), false
}
