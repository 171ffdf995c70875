package rows

import (
	"sort"
	"strings"
)

// Expansion is the set of expanded parent ids. Membership has no ordering significance.
// Read methods tolerate a nil receiver (nothing expanded).
type Expansion struct {
	ids map[string]struct{}
}

func NewExpansion(ids ...string) *Expansion {
	e := &Expansion{ids: map[string]struct{}{}}
	for _, id := range ids {
		e.Expand(id)
	}
	return e
}

func (e *Expansion) IsExpanded(id string) bool {
	if e == nil {
		return false
	}
	_, ok := e.ids[strings.TrimSpace(id)]
	return ok
}

func (e *Expansion) Expand(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if e.ids == nil {
		e.ids = map[string]struct{}{}
	}
	e.ids[id] = struct{}{}
}

func (e *Expansion) Collapse(id string) {
	if e == nil {
		return
	}
	delete(e.ids, strings.TrimSpace(id))
}

// Toggle flips membership of id and reports whether it is now expanded.
func (e *Expansion) Toggle(id string) bool {
	if e.IsExpanded(id) {
		e.Collapse(id)
		return false
	}
	e.Expand(id)
	return e.IsExpanded(id)
}

func (e *Expansion) Clear() {
	if e == nil {
		return
	}
	e.ids = map[string]struct{}{}
}

func (e *Expansion) Len() int {
	if e == nil {
		return 0
	}
	return len(e.ids)
}

// IDs returns the expanded ids, sorted for stable output.
func (e *Expansion) IDs() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.ids))
	for id := range e.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
