// Package session owns the state of one topic dashboard: the canonical rows, the
// perturbation cache, expansion, drag and per-row request status.
//
// A Dashboard is not safe for concurrent use. All Begin*/Apply*/accessor methods run on one
// goroutine (the TUI update loop or a CLI command). The network methods (Load, Generate,
// Assess, Edit, Delete, AutoGrade) only use the service and may run anywhere; their results
// are handed back to the matching Apply method.
package session

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"verdict-cli/internal/api"
	"verdict-cli/internal/rows"
	"verdict-cli/internal/store"
)

// LocalStore is the local snapshot and manual-order persistence. store.Store implements it.
type LocalStore interface {
	LoadSnapshot(ctx context.Context, topic string) (store.Snapshot, bool, error)
	SaveSnapshot(ctx context.Context, topic string, parents []rows.Parent, cache *rows.Cache) error
	ForgetTests(ctx context.Context, topic string, ids []string) error
	LoadRanks(ctx context.Context, topic string) (map[string]string, error)
	SaveRanks(ctx context.Context, topic string, byID map[string]string) error
}

var _ LocalStore = store.Store{}

// Result is what an Apply method reports back to the caller.
type Result struct {
	OK bool
	// Stale is set when the response belonged to a topic or load that has since been
	// superseded; nothing was applied.
	Stale bool
	// Reload asks the caller to refresh the topic (AI verdicts are being recomputed).
	Reload  bool
	Message string
}

type Option func(*Dashboard)

func WithLogger(l *zap.Logger) Option {
	return func(d *Dashboard) {
		if l != nil {
			d.log = l
		}
	}
}

func WithStore(s LocalStore) Option {
	return func(d *Dashboard) { d.store = s }
}

func WithPageSize(n int) Option {
	return func(d *Dashboard) { d.pageSize = n }
}

type Dashboard struct {
	svc      api.Service
	store    LocalStore
	log      *zap.Logger
	loads    singleflight.Group
	pageSize int

	topic   string
	loadSeq uint64
	loading bool
	loaded  bool
	// epoch changes on every topic switch. Calls carry the epoch they started in so a
	// response from before a switch cannot settle state belonging to a later visit.
	epoch uint64

	table *rows.Table
	cache *rows.Cache
	exp   *rows.Expansion
	drag  rows.Drag
	ranks map[string]string

	// gen tracks perturbation generation per parent; mut tracks assess/edit/delete.
	gen *rows.StatusTracker
	mut *rows.StatusTracker
}

func New(svc api.Service, opts ...Option) *Dashboard {
	d := &Dashboard{
		svc:      svc,
		log:      zap.NewNop(),
		pageSize: rows.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.table = rows.NewTable(d.pageSize)
	d.resetTopicState()
	return d
}

func (d *Dashboard) resetTopicState() {
	d.epoch++
	d.table.Reset()
	d.cache = rows.NewCache()
	d.exp = rows.NewExpansion()
	d.drag.Cancel()
	d.ranks = map[string]string{}
	d.gen = rows.NewStatusTracker()
	d.mut = rows.NewStatusTracker()
	d.loaded = false
	d.loading = false
}

func (d *Dashboard) Topic() string              { return d.topic }
func (d *Dashboard) Loading() bool              { return d.loading }
func (d *Dashboard) Loaded() bool               { return d.loaded }
func (d *Dashboard) Table() *rows.Table         { return d.table }
func (d *Dashboard) Cache() *rows.Cache         { return d.cache }
func (d *Dashboard) Expansion() *rows.Expansion { return d.exp }

// View is the current rendered projection.
func (d *Dashboard) View() rows.View { return d.table.View(d.exp, d.cache) }

// ToggleExpanded flips a parent's expansion. Children and unknown ids are ignored.
func (d *Dashboard) ToggleExpanded(id string) bool {
	if _, ok := d.table.Find(id); !ok {
		return false
	}
	d.exp.Toggle(id)
	return true
}

// ExpandAll expands every parent that has cached variants.
func (d *Dashboard) ExpandAll() {
	for _, p := range d.table.Rows() {
		if d.cache.Has(p.ID) {
			d.exp.Expand(p.ID)
		}
	}
}

func (d *Dashboard) CollapseAll() { d.exp.Clear() }

func (d *Dashboard) GenerationStatus(id string) rows.Status { return d.gen.Get(id) }
func (d *Dashboard) IsGenerating(id string) bool            { return d.gen.IsPending(id) }
func (d *Dashboard) AnyGenerating() bool                    { return len(d.gen.Pending()) > 0 }
func (d *Dashboard) GenerationErr(id string) string         { return d.gen.Err(id) }
func (d *Dashboard) MutationPending(id string) bool         { return d.mut.IsPending(id) }
func (d *Dashboard) MutationErr(id string) string           { return d.mut.Err(id) }

// current reports whether a call started in (topic, epoch) still owns the dashboard state.
func (d *Dashboard) current(topic string, epoch uint64) bool {
	return topic == d.topic && epoch == d.epoch
}

func (d *Dashboard) saveSnapshot(ctx context.Context) {
	if d.store == nil || d.topic == "" || !d.loaded {
		return
	}
	if err := d.store.SaveSnapshot(ctx, d.topic, d.table.Rows(), d.cache); err != nil {
		d.log.Warn("save snapshot failed", zap.String("topic", d.topic), zap.Error(err))
	}
}

func (d *Dashboard) parentIDs(ids []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		if _, ok := d.table.Find(id); !ok {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
