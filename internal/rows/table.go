package rows

import (
	"fmt"
	"sort"
	"strings"

	"verdict-cli/internal/model"
)

// Column names a sortable/filterable/hideable column of the results table.
type Column string

const (
	ColStatement    Column = "statement"
	ColCriteria     Column = "criteria"
	ColAIAssessment Column = "ai_assessment"
	ColGroundTruth  Column = "ground_truth"
	ColAgreement    Column = "agreement"
	ColTopic        Column = "topic"
	ColLabeler      Column = "labeler"
	ColAuthor       Column = "author"
)

// Columns lists the table columns in display order.
var Columns = []Column{ColStatement, ColCriteria, ColAIAssessment, ColGroundTruth, ColAgreement, ColTopic, ColLabeler, ColAuthor}

// PageSizes are the page sizes offered by the table footer.
var PageSizes = []int{10, 20, 30, 40, 50}

const DefaultPageSize = 10

func ParseColumn(s string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range Columns {
		if k == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown column: %q", s)
}

type Sort struct {
	Column Column `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// Filter restricts rows by one column. Statement/topic/labeler/author match by
// case-insensitive substring; enum columns match any of a comma-separated value list.
type Filter struct {
	Column Column `json:"column"`
	Value  string `json:"value"`
}

type Pagination struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
}

// TableState is the single authoritative UI state bag of the results table.
type TableState struct {
	Sorting    []Sort          `json:"sorting,omitempty"`
	Filters    []Filter        `json:"filters,omitempty"`
	Visibility map[Column]bool `json:"visibility,omitempty"`
	Selection  map[string]bool `json:"selection,omitempty"`
	Pagination Pagination      `json:"pagination"`
}

func (s TableState) clone() TableState {
	out := TableState{
		Sorting:    append([]Sort(nil), s.Sorting...),
		Filters:    append([]Filter(nil), s.Filters...),
		Visibility: make(map[Column]bool, len(s.Visibility)),
		Selection:  make(map[string]bool, len(s.Selection)),
		Pagination: s.Pagination,
	}
	for k, v := range s.Visibility {
		out.Visibility[k] = v
	}
	for k, v := range s.Selection {
		out.Selection[k] = v
	}
	return out
}

// Table owns the canonical ordered parent sequence of the active topic and the state that
// derives the visible page from it: filter, then sort, then paginate.
//
// Table is not safe for concurrent use; it is written from a single event loop.
type Table struct {
	rows  []Parent
	index map[string]int
	state TableState
}

func NewTable(pageSize int) *Table {
	t := &Table{index: map[string]int{}}
	t.state.Visibility = map[Column]bool{ColCriteria: false}
	t.state.Selection = map[string]bool{}
	t.state.Pagination = Pagination{PageSize: normalizePageSize(pageSize)}
	return t
}

func normalizePageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	return n
}

// SetRows replaces the canonical sequence. Duplicate ids keep their first occurrence.
// Parents that left the sequence lose their selection; other selection keys (children)
// are left for PruneSelection. The page index is clamped.
func (t *Table) SetRows(ps []Parent) {
	prev := t.index
	next := make([]Parent, 0, len(ps))
	seen := map[string]bool{}
	for _, p := range ps {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		next = append(next, p)
	}
	t.rows = next
	t.reindex()
	for id := range t.state.Selection {
		_, was := prev[id]
		_, is := t.index[id]
		if was && !is {
			delete(t.state.Selection, id)
		}
	}
	t.clampPage()
}

// PruneSelection drops selection keys that are neither a current parent nor accepted by
// keep.
func (t *Table) PruneSelection(keep func(id string) bool) {
	for id := range t.state.Selection {
		if _, ok := t.index[id]; ok {
			continue
		}
		if keep == nil || !keep(id) {
			delete(t.state.Selection, id)
		}
	}
}

// Reset clears the canonical sequence and selection for a topic switch. Sorting, filters,
// visibility and page size are user preferences and are kept.
func (t *Table) Reset() {
	t.rows = nil
	t.index = map[string]int{}
	t.state.Selection = map[string]bool{}
	t.state.Pagination.PageIndex = 0
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.rows))
	for i, p := range t.rows {
		t.index[p.ID] = i
	}
}

func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of the canonical sequence.
func (t *Table) Rows() []Parent {
	return append([]Parent(nil), t.rows...)
}

func (t *Table) IndexOf(id string) int {
	if i, ok := t.index[strings.TrimSpace(id)]; ok {
		return i
	}
	return -1
}

func (t *Table) Find(id string) (Parent, bool) {
	i := t.IndexOf(id)
	if i < 0 {
		return Parent{}, false
	}
	return t.rows[i], true
}

// Update applies fn to the parent with id in place. The id itself cannot be changed.
func (t *Table) Update(id string, fn func(p *Parent)) bool {
	i := t.IndexOf(id)
	if i < 0 || fn == nil {
		return false
	}
	p := t.rows[i]
	fn(&p)
	p.ID = t.rows[i].ID
	t.rows[i] = p
	return true
}

// Remove deletes parents by id and returns how many were removed.
func (t *Table) Remove(ids ...string) int {
	drop := map[string]bool{}
	for _, id := range ids {
		drop[strings.TrimSpace(id)] = true
	}
	next := t.rows[:0:0]
	for _, p := range t.rows {
		if drop[p.ID] {
			delete(t.state.Selection, p.ID)
			continue
		}
		next = append(next, p)
	}
	n := len(t.rows) - len(next)
	t.rows = next
	t.reindex()
	t.clampPage()
	return n
}

// Move relocates the parent at canonical index from to index to (array-move, not swap).
func (t *Table) Move(from, to int) bool {
	if from < 0 || from >= len(t.rows) || to < 0 || to >= len(t.rows) || from == to {
		return false
	}
	t.rows = arrayMove(t.rows, from, to)
	t.reindex()
	return true
}

func arrayMove[T any](s []T, from, to int) []T {
	moved := s[from]
	rest := make([]T, 0, len(s)-1)
	rest = append(rest, s[:from]...)
	rest = append(rest, s[from+1:]...)
	out := make([]T, 0, len(s))
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)
	return out
}

// State returns a copy of the table state.
func (t *Table) State() TableState { return t.state.clone() }

// Sorting

func (t *Table) SetSorting(sorts ...Sort) {
	t.state.Sorting = append([]Sort(nil), sorts...)
}

// ToggleSort cycles a single-column sort: ascending, descending, off.
func (t *Table) ToggleSort(col Column) {
	if len(t.state.Sorting) == 1 && t.state.Sorting[0].Column == col {
		if !t.state.Sorting[0].Desc {
			t.state.Sorting = []Sort{{Column: col, Desc: true}}
			return
		}
		t.state.Sorting = nil
		return
	}
	t.state.Sorting = []Sort{{Column: col}}
}

// Filters

// SetFilter sets (or, with an empty value, removes) the filter on col.
// The page index returns to the first page.
func (t *Table) SetFilter(col Column, value string) {
	value = strings.TrimSpace(value)
	next := t.state.Filters[:0:0]
	for _, f := range t.state.Filters {
		if f.Column != col {
			next = append(next, f)
		}
	}
	if value != "" {
		next = append(next, Filter{Column: col, Value: value})
	}
	t.state.Filters = next
	t.state.Pagination.PageIndex = 0
}

func (t *Table) FilterValue(col Column) string {
	for _, f := range t.state.Filters {
		if f.Column == col {
			return f.Value
		}
	}
	return ""
}

func (t *Table) ClearFilters() {
	t.state.Filters = nil
	t.state.Pagination.PageIndex = 0
}

// Visibility

func (t *Table) SetColumnVisible(col Column, visible bool) {
	if t.state.Visibility == nil {
		t.state.Visibility = map[Column]bool{}
	}
	t.state.Visibility[col] = visible
}

// ColumnVisible reports whether col is shown; columns default to visible.
func (t *Table) ColumnVisible(col Column) bool {
	v, ok := t.state.Visibility[col]
	return !ok || v
}

// Pagination

func (t *Table) PageSize() int  { return t.state.Pagination.PageSize }
func (t *Table) PageIndex() int { return t.state.Pagination.PageIndex }

// SetPageSize changes the page size, keeping the first row of the current page visible.
func (t *Table) SetPageSize(n int) {
	n = normalizePageSize(n)
	top := t.state.Pagination.PageIndex * t.state.Pagination.PageSize
	t.state.Pagination.PageSize = n
	t.state.Pagination.PageIndex = top / n
	t.clampPage()
}

func (t *Table) SetPageIndex(i int) {
	t.state.Pagination.PageIndex = i
	t.clampPage()
}

func (t *Table) clampPage() {
	n := t.PageCount()
	if t.state.Pagination.PageIndex >= n {
		t.state.Pagination.PageIndex = n - 1
	}
	if t.state.Pagination.PageIndex < 0 {
		t.state.Pagination.PageIndex = 0
	}
}

// PageCount is the number of pages of the filtered sequence; zero when it is empty.
func (t *Table) PageCount() int {
	return pageCount(len(t.filtered()), t.state.Pagination.PageSize)
}

func pageCount(n, size int) int {
	if n == 0 {
		return 0
	}
	size = normalizePageSize(size)
	return (n + size - 1) / size
}

func (t *Table) CanPreviousPage() bool { return t.state.Pagination.PageIndex > 0 }
func (t *Table) CanNextPage() bool     { return t.state.Pagination.PageIndex+1 < t.PageCount() }

func (t *Table) NextPage() bool {
	if !t.CanNextPage() {
		return false
	}
	t.state.Pagination.PageIndex++
	return true
}

func (t *Table) PreviousPage() bool {
	if !t.CanPreviousPage() {
		return false
	}
	t.state.Pagination.PageIndex--
	return true
}

func (t *Table) FirstPage() { t.state.Pagination.PageIndex = 0 }
func (t *Table) LastPage()  { t.SetPageIndex(t.PageCount() - 1) }

// Selection

// SetSelected records selection for any row id, parent or child. Only parent ids count
// toward bulk actions.
func (t *Table) SetSelected(id string, selected bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if selected {
		t.state.Selection[id] = true
		return
	}
	delete(t.state.Selection, id)
}

func (t *Table) ToggleSelected(id string) bool {
	next := !t.IsSelected(id)
	t.SetSelected(id, next)
	return next
}

func (t *Table) IsSelected(id string) bool {
	return t.state.Selection[strings.TrimSpace(id)]
}

func (t *Table) ClearSelection() {
	t.state.Selection = map[string]bool{}
}

// SelectAllPage selects or deselects every parent on the current page.
func (t *Table) SelectAllPage(selected bool) {
	for _, p := range t.Page() {
		t.SetSelected(p.ID, selected)
	}
}

// AllPageSelected reports whether the current page is non-empty and fully selected.
func (t *Table) AllPageSelected() bool {
	page := t.Page()
	if len(page) == 0 {
		return false
	}
	for _, p := range page {
		if !t.IsSelected(p.ID) {
			return false
		}
	}
	return true
}

// SelectedParentIDs returns the selected parents that pass the current filters, in
// canonical order.
func (t *Table) SelectedParentIDs() []string {
	var out []string
	for _, p := range t.filtered() {
		if t.state.Selection[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}

func (t *Table) SelectedCount() int { return len(t.SelectedParentIDs()) }

// FilteredCount is the number of parents passing the current filters.
func (t *Table) FilteredCount() int { return len(t.filtered()) }

// Derivation

func (t *Table) filtered() []Parent {
	if len(t.state.Filters) == 0 {
		return t.rows
	}
	out := make([]Parent, 0, len(t.rows))
	for _, p := range t.rows {
		if matchesAll(p, t.state.Filters) {
			out = append(out, p)
		}
	}
	return out
}

func (t *Table) sorted() []Parent {
	rows := append([]Parent(nil), t.filtered()...)
	if len(t.state.Sorting) == 0 {
		return rows
	}
	sorts := t.state.Sorting
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range sorts {
			c := compareParents(rows[i], rows[j], s.Column)
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return rows
}

// Page returns the parents of the active page after filtering and sorting.
func (t *Table) Page() []Parent {
	rows := t.sorted()
	size := normalizePageSize(t.state.Pagination.PageSize)
	start := t.state.Pagination.PageIndex * size
	if start >= len(rows) || start < 0 {
		return []Parent{}
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return append([]Parent{}, rows[start:end]...)
}

// FlattenedPage is the active page with the children of expanded parents interleaved.
func (t *Table) FlattenedPage(exp *Expansion, cache *Cache) []Row {
	return Flatten(t.Page(), exp, cache)
}

// View projects the flattened page into the state used for rendering. The projection
// shares sorting, filters, visibility and selection with the table and shows exactly the
// flattened rows on a single page.
func (t *Table) View(exp *Expansion, cache *Cache) View {
	flat := t.FlattenedPage(exp, cache)
	st := t.state.clone()
	st.Pagination = Pagination{PageIndex: 0, PageSize: len(flat)}
	return View{
		Rows:      flat,
		State:     st,
		PageIndex: t.state.Pagination.PageIndex,
		PageCount: t.PageCount(),
		Filtered:  t.FilteredCount(),
		Selected:  t.SelectedCount(),
	}
}

func compareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

var groundTruthOrder = map[model.GroundTruth]int{
	model.GroundTruthUngraded:     0,
	model.GroundTruthUnacceptable: 1,
	model.GroundTruthAcceptable:   2,
}

func agreementOrder(b *bool) int {
	switch {
	case b == nil:
		return 0
	case !*b:
		return 1
	default:
		return 2
	}
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareParents(a, b Parent, col Column) int {
	switch col {
	case ColStatement:
		return compareStrings(a.Statement, b.Statement)
	case ColGroundTruth:
		return compareInts(groundTruthOrder[a.GroundTruth], groundTruthOrder[b.GroundTruth])
	case ColAIAssessment:
		return compareStrings(string(a.AIAssessment), string(b.AIAssessment))
	case ColAgreement:
		return compareInts(agreementOrder(a.Agreement), agreementOrder(b.Agreement))
	case ColTopic:
		return compareStrings(a.Topic, b.Topic)
	case ColLabeler:
		return compareStrings(a.Labeler, b.Labeler)
	case ColAuthor:
		return compareStrings(a.Author, b.Author)
	default:
		return 0
	}
}

func matchesAll(p Parent, filters []Filter) bool {
	for _, f := range filters {
		if !matches(p, f) {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

func oneOf(v, list string) bool {
	for _, want := range strings.Split(list, ",") {
		if strings.EqualFold(strings.TrimSpace(want), v) {
			return true
		}
	}
	return false
}

func matches(p Parent, f Filter) bool {
	switch f.Column {
	case ColStatement:
		return containsFold(p.Statement, f.Value)
	case ColTopic:
		return containsFold(p.Topic, f.Value)
	case ColLabeler:
		return containsFold(p.Labeler, f.Value)
	case ColAuthor:
		return containsFold(p.Author, f.Value)
	case ColGroundTruth:
		return oneOf(string(p.GroundTruth), f.Value)
	case ColAIAssessment:
		return oneOf(string(p.AIAssessment), f.Value)
	case ColAgreement:
		return oneOf(ParentAgreement(p).String(), f.Value)
	default:
		return true
	}
}
