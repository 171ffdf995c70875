package rows

// Flatten interleaves page with the cached children of its expanded parents.
//
// Every parent is emitted in page order. An expanded parent with cached perturbations is
// immediately followed by its children in cache order. A parent with no cache entry yields
// no children, and an expanded parent whose entry has been cleared stays expanded: only an
// explicit Collapse changes expansion. Cache entries for parents not on the page are ignored.
//
// Flatten reads but never mutates its inputs; nil exp or cache behave as empty.
func Flatten(page []Parent, exp *Expansion, cache *Cache) []Row {
	out := make([]Row, 0, len(page))
	for _, p := range page {
		out = append(out, p)
		if !exp.IsExpanded(p.ID) || !cache.Has(p.ID) {
			continue
		}
		for _, pt := range cache.Get(p.ID) {
			out = append(out, NewChild(p, pt))
		}
	}
	return out
}
