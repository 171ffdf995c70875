package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"verdict-cli/internal/api"
	"verdict-cli/internal/logging"
	"verdict-cli/internal/model"
	"verdict-cli/internal/rows"
	"verdict-cli/internal/session"
	"verdict-cli/internal/store"
)

type appModel struct {
	svc     api.Service
	st      store.Store
	cfg     *store.GlobalConfig
	saveCfg bool
	log     *zap.Logger
	timeout time.Duration

	// ctx is cancelled on quit so in-flight requests stop.
	ctx    context.Context
	cancel context.CancelFunc

	dash    *session.Dashboard
	uiState *store.TUIState

	view   view
	modal  modal
	width  int
	height int

	topics        []model.Topic
	topicsCursor  int
	topicsLoading bool
	topicsCached  bool
	topicQuery    string

	cursor     int
	cursorID   string
	showDetail bool
	agreeIdx   int

	criteria        []model.CriteriaType
	criteriaLoaded  bool
	criteriaCursor  int
	criteriaPicked  map[string]bool
	pendingGenerate []string
	pendingDelete   []string

	input        textinput.Model
	filterBefore string
	editID       string
	editGT       model.GroundTruth

	spinner  spinner.Model
	spinning bool
	inflight int
	help     help.Model
	keys     keyMap

	minibufferText  string
	minibufferErr   bool
	minibufferSetAt time.Time

	initCmds []tea.Cmd
}

func newAppModel(opts Options) appModel {
	log := logging.OrNop(opts.Logger)
	cfg := opts.Config
	saveCfg := cfg != nil
	if cfg == nil {
		cfg = &store.GlobalConfig{}
	}

	sopts := []session.Option{
		session.WithLogger(log.Named("session")),
		session.WithPageSize(cfg.EffectivePageSize()),
	}
	if hasStore(opts.Store) {
		sopts = append(sopts, session.WithStore(opts.Store))
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := appModel{
		svc:            opts.Service,
		st:             opts.Store,
		cfg:            cfg,
		saveCfg:        saveCfg,
		log:            log,
		timeout:        opts.Timeout,
		ctx:            ctx,
		cancel:         cancel,
		dash:           session.New(opts.Service, sopts...),
		uiState:        &store.TUIState{Version: 1},
		criteriaPicked: map[string]bool{},
		help:           help.New(),
		keys:           newKeyMap(),
	}

	m.input = textinput.New()
	m.input.Prompt = "› "
	m.input.CharLimit = 2000

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.MiniDot
	if glyphs() == glyphSetASCII {
		m.spinner.Spinner = spinner.Line
	}
	m.spinner.Style = styleBadge(colorAccent)

	if hasStore(m.st) {
		if st, err := m.st.LoadTUIState(); err != nil {
			log.Warn("load tui state failed", zap.Error(err))
		} else {
			m.uiState = st
		}
	}
	m.showDetail = m.uiState.ShowDetail

	m.initCmds = append(m.initCmds, m.beginTopics(), tickCmd())
	if topic := strings.TrimSpace(cfg.CurrentTopic); topic != "" && m.uiState.View != viewTopics.String() {
		if cmd := m.selectTopic(topic); cmd != nil {
			m.initCmds = append(m.initCmds, cmd)
		}
	}
	return m
}

func hasStore(s store.Store) bool { return strings.TrimSpace(s.Dir) != "" }

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.initCmds...)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return reloadTickMsg{} })
}

// requestContext bounds one service call by the configured timeout.
func (m appModel) requestContext() (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return context.WithCancel(m.ctx)
	}
	return context.WithTimeout(m.ctx, m.timeout)
}

// track counts a request in flight and makes sure the spinner runs while it is.
func (m *appModel) track(cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	m.inflight++
	if m.spinning {
		return cmd
	}
	m.spinning = true
	return tea.Batch(cmd, m.spinner.Tick)
}

func (m *appModel) settle() {
	if m.inflight > 0 {
		m.inflight--
	}
}

func (m appModel) busy() bool {
	return m.inflight > 0 || m.dash.AnyGenerating()
}

func (m *appModel) showMinibuffer(text string) {
	m.minibufferText = strings.TrimSpace(text)
	m.minibufferErr = false
	m.minibufferSetAt = time.Now()
}

func (m *appModel) showError(text string) {
	m.showMinibuffer(text)
	m.minibufferErr = m.minibufferText != ""
}

func (m *appModel) clearMinibuffer() {
	m.minibufferText = ""
	m.minibufferErr = false
}

// report shows the outcome of an Apply call and schedules a reload when asked.
func (m *appModel) report(res session.Result) tea.Cmd {
	if res.Stale {
		return nil
	}
	if res.OK {
		m.showMinibuffer(res.Message)
	} else {
		m.showError(res.Message)
	}
	m.syncCursor()
	if !res.Reload {
		return nil
	}
	topic := m.dash.Topic()
	return tea.Tick(regradeReloadDelay, func(time.Time) tea.Msg { return regradeReloadMsg{topic: topic} })
}

// Topics

func (m *appModel) beginTopics() tea.Cmd {
	if m.topicsLoading || m.svc == nil {
		return nil
	}
	m.topicsLoading = true
	svc, st := m.svc, m.st
	ctx, cancel := m.requestContext()
	return m.track(func() tea.Msg {
		defer cancel()
		topics, err := svc.ListTopics(ctx)
		if err != nil && hasStore(st) {
			if cached, cerr := st.LoadTopics(ctx); cerr == nil && len(cached) > 0 {
				return topicsLoadedMsg{topics: cached, cached: true, err: err}
			}
		}
		return topicsLoadedMsg{topics: topics, err: err}
	})
}

// selectTopic switches the dashboard to topic, restores its saved layout and returns the
// fetch to run.
func (m *appModel) selectTopic(topic string) tea.Cmd {
	switching := topic != m.dash.Topic()
	req, ok := m.dash.SelectTopic(m.ctx, topic)
	if switching {
		m.cursor, m.cursorID = 0, ""
		m.agreeIdx = 0
		m.applyLayout(topic)
	}
	m.view = viewTable
	m.syncCursor()
	if strings.TrimSpace(topic) != "" && m.cfg.CurrentTopic != topic {
		m.cfg.CurrentTopic = topic
		if m.saveCfg {
			if err := store.SaveConfig(m.cfg); err != nil {
				m.log.Warn("save config failed", zap.Error(err))
			}
		}
	}
	if !ok {
		return nil
	}
	return m.loadCmd(req)
}

func (m *appModel) applyLayout(topic string) {
	sorts, hidden := m.uiState.TopicLayout(topic)
	t := m.dash.Table()
	t.SetSorting(sorts...)
	t.ClearFilters()
	for _, c := range rows.Columns {
		if c != rows.ColCriteria {
			t.SetColumnVisible(c, true)
		}
	}
	for _, c := range hidden {
		t.SetColumnVisible(c, false)
	}
}

func (m *appModel) saveUIState() {
	m.uiState.View = m.view.String()
	m.uiState.ShowDetail = m.showDetail
	if topic := m.dash.Topic(); topic != "" {
		m.uiState.SetTopicLayout(topic, m.dash.Table().State())
	}
	if !hasStore(m.st) {
		return
	}
	if err := m.st.SaveTUIState(m.uiState); err != nil {
		m.log.Warn("save tui state failed", zap.Error(err))
	}
}

// Requests. Each command runs the network half of a session operation off the update loop
// and hands the result back as a message.

func (m *appModel) loadCmd(req session.LoadRequest) tea.Cmd {
	d := m.dash
	ctx, cancel := m.requestContext()
	return m.track(func() tea.Msg {
		defer cancel()
		return loadDoneMsg{res: d.Load(ctx, req)}
	})
}

func (m *appModel) refresh() tea.Cmd {
	req, ok := m.dash.Refresh()
	if !ok {
		return nil
	}
	return m.loadCmd(req)
}

func (m *appModel) criteriaCmd() tea.Cmd {
	svc := m.svc
	ctx, cancel := m.requestContext()
	return m.track(func() tea.Msg {
		defer cancel()
		types, err := svc.ListCriteriaTypes(ctx)
		return criteriaLoadedMsg{types: types, err: err}
	})
}

func (m *appModel) generateCmd(call session.GenerateCall) tea.Cmd {
	d := m.dash
	ctx, cancel := m.requestContext()
	return m.track(func() tea.Msg {
		defer cancel()
		return generateDoneMsg{res: d.Generate(ctx, call)}
	})
}

func (m *appModel) assessCmd(call session.AssessCall) tea.Cmd {
	d := m.dash
	ctx, cancel := m.requestContext()
	return m.track(func() tea.Msg {
		defer cancel()
		return assessDoneMsg{res: d.Assess(ctx, call)}
	})
}

func (m *appModel) editCmd(call session.EditCall) tea.Cmd {
	d := m.dash
	ctx, cancel := m.requestContext()
	return m.track(func() tea.Msg {
		defer cancel()
		return editDoneMsg{res: d.Edit(ctx, call)}
	})
}

func (m *appModel) deleteCmd(call session.DeleteCall) tea.Cmd {
	d := m.dash
	ctx, cancel := m.requestContext()
	return m.track(func() tea.Msg {
		defer cancel()
		return deleteDoneMsg{res: d.Delete(ctx, call)}
	})
}

func (m *appModel) autoGradeCmd(call session.AutoGradeCall) tea.Cmd {
	d := m.dash
	ctx, cancel := m.requestContext()
	return m.track(func() tea.Msg {
		defer cancel()
		return autoGradeDoneMsg{res: d.AutoGrade(ctx, call)}
	})
}

// Cursor

func (m *appModel) syncCursor() {
	v := m.dash.View()
	if m.cursorID != "" {
		if _, i, ok := v.Find(m.cursorID); ok {
			m.cursor = i
			return
		}
	}
	m.cursor = clamp(m.cursor, 0, len(v.Rows)-1)
	m.cursorID = ""
	if len(v.Rows) > 0 {
		m.cursorID = v.Rows[m.cursor].RowID()
	}
}

func (m *appModel) moveCursor(delta int) {
	v := m.dash.View()
	if len(v.Rows) == 0 {
		return
	}
	m.cursor = clamp(m.cursor+delta, 0, len(v.Rows)-1)
	m.cursorID = v.Rows[m.cursor].RowID()
	if _, _, dragging := m.dash.Dragging(); dragging {
		m.dash.DragOver(m.cursorID)
	}
}

func (m appModel) focused() (rows.Row, rows.View, bool) {
	v := m.dash.View()
	if m.cursor < 0 || m.cursor >= len(v.Rows) {
		return nil, v, false
	}
	return v.Rows[m.cursor], v, true
}

// focusedParentID is the focused parent, or the parent of a focused child.
func (m appModel) focusedParentID() string {
	r, _, ok := m.focused()
	if !ok {
		return ""
	}
	switch x := r.(type) {
	case rows.Parent:
		return x.ID
	case rows.Child:
		return x.ParentID
	}
	return ""
}

// targets are the ids a bulk action applies to: the selection, else the focused parent.
func (m appModel) targets() []string {
	if ids := m.dash.Table().SelectedParentIDs(); len(ids) > 0 {
		return ids
	}
	if id := m.focusedParentID(); id != "" {
		return []string{id}
	}
	return nil
}

// visibleTopics is the picker list: every topic, or the fuzzy matches of topicQuery ranked
// best first.
func (m appModel) visibleTopics() []model.Topic {
	if m.topicQuery == "" {
		return m.topics
	}
	names := make([]string, len(m.topics))
	for i, tp := range m.topics {
		names[i] = tp.Name
	}
	matches := fuzzy.Find(m.topicQuery, names)
	out := make([]model.Topic, 0, len(matches))
	for _, mt := range matches {
		out = append(out, m.topics[mt.Index])
	}
	return out
}

func clamp(n, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(n, lo), hi)
}
