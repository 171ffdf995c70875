package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"verdict-cli/internal/api"
	"verdict-cli/internal/model"
	"verdict-cli/internal/rows"
	"verdict-cli/internal/store"
)

type fakeService struct {
	mu     sync.Mutex
	tests  map[string][]model.Test
	perts  map[string][]model.Perturbation
	calls  map[string]int
	failOn map[string]error
}

var _ api.Service = (*fakeService)(nil)

func newFakeService() *fakeService {
	return &fakeService{
		tests: map[string][]model.Test{
			"Energy": {
				{ID: "A", Topic: "Energy", Statement: "Solar panels convert sunlight", GroundTruth: model.GroundTruthUnacceptable, AIAssessment: model.AIFail, Agreement: model.BoolPtr(true)},
				{ID: "B", Topic: "Energy", Statement: "Wind turbines need wind", GroundTruth: model.GroundTruthAcceptable, AIAssessment: model.AIPass, Agreement: model.BoolPtr(true)},
				{ID: "C", Topic: "Energy", Statement: "Coal is renewable", GroundTruth: model.GroundTruthUngraded, AIAssessment: model.AIFail},
			},
		},
		perts: map[string][]model.Perturbation{
			"Energy": {{ID: "a1", OriginalID: "A", Title: "Solar panels do not convert sunlight", Label: model.AIPass, Type: "negation", Topic: "Energy", GroundTruth: model.GroundTruthAcceptable}},
		},
		calls:  map[string]int{},
		failOn: map[string]error{},
	}
}

func (f *fakeService) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.failOn[name]
}

func (f *fakeService) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeService) ListTopics(context.Context) ([]model.Topic, error) {
	if err := f.record("ListTopics"); err != nil {
		return nil, err
	}
	return []model.Topic{{Name: "Energy", TestCount: 3}, {Name: "Motion"}}, nil
}

func (f *fakeService) FetchTests(_ context.Context, topic string) (model.TopicTests, error) {
	if err := f.record("FetchTests"); err != nil {
		return model.TopicTests{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := append([]model.Test(nil), f.tests[topic]...)
	return model.TopicTests{Topic: topic, TotalTests: len(ts), Tests: ts}, nil
}

func (f *fakeService) FetchPerturbations(_ context.Context, topic string) (model.PerturbationBatch, error) {
	if err := f.record("FetchPerturbations"); err != nil {
		return model.PerturbationBatch{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.PerturbationBatch{Perturbations: append([]model.Perturbation(nil), f.perts[topic]...)}, nil
}

func (f *fakeService) GeneratePerturbations(_ context.Context, req api.GenerateRequest) (model.PerturbationBatch, error) {
	if err := f.record("GeneratePerturbations"); err != nil {
		return model.PerturbationBatch{}, err
	}
	var out []model.Perturbation
	for _, id := range req.TestIDs {
		for _, typ := range req.CriteriaTypes {
			out = append(out, model.Perturbation{
				ID: id + "-" + typ, OriginalID: id, Title: "variant of " + id,
				Label: model.AIFail, Type: typ, Topic: req.Topic, GroundTruth: model.GroundTruthUnacceptable,
			})
		}
	}
	return model.PerturbationBatch{Perturbations: out}, nil
}

func (f *fakeService) Assess(context.Context, string, model.GroundTruth) error {
	return f.record("Assess")
}

func (f *fakeService) EditTest(context.Context, string, string, model.GroundTruth) error {
	return f.record("EditTest")
}

func (f *fakeService) DeleteTest(context.Context, string) error {
	return f.record("DeleteTest")
}

func (f *fakeService) AutoGrade(_ context.Context, ids []string) (model.AutoGradeResult, error) {
	if err := f.record("AutoGrade"); err != nil {
		return model.AutoGradeResult{}, err
	}
	return model.AutoGradeResult{GradedCount: len(ids)}, nil
}

func (f *fakeService) ListCriteriaTypes(context.Context) ([]model.CriteriaType, error) {
	if err := f.record("ListCriteriaTypes"); err != nil {
		return nil, err
	}
	return []model.CriteriaType{{Name: "negation", IsDefault: true}, {Name: "synonyms"}}, nil
}

func (f *fakeService) ClearTopicCache(context.Context, string, string) error {
	return f.record("ClearTopicCache")
}

var errBoom = errors.New("boom")

func newTestModel(t *testing.T, svc api.Service) appModel {
	t.Helper()
	setGlyphs(glyphSetUnicode)
	m := newAppModel(Options{Service: svc, Store: store.Store{Dir: t.TempDir()}})
	m.width, m.height = 120, 40
	// The first init command lists topics; the rest are timers.
	return drain(t, m, m.initCmds[0])
}

// openTopic selects topic and applies its load.
func openTopic(t *testing.T, m appModel, topic string) appModel {
	t.Helper()
	cmd := (&m).selectTopic(topic)
	m = drain(t, m, cmd)
	if !m.dash.Loaded() {
		t.Fatalf("expected topic %q to load, minibuffer=%q", topic, m.minibufferText)
	}
	return m
}

// drain runs cmd, feeding the messages it produces back into the model. Spinner ticks are
// dropped and commands returned by Update are not followed (they are timers).
func drain(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	for _, msg := range collect(cmd) {
		if _, ok := msg.(spinner.TickMsg); ok {
			continue
		}
		mm, _ := m.Update(msg)
		m = mm.(appModel)
	}
	return m
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, collect(c)...)
	}
	return out
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func press(t *testing.T, m appModel, keys ...string) (appModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		mm, c := m.Update(keyMsg(k))
		m = mm.(appModel)
		cmd = c
	}
	return m, cmd
}

func parentOrder(m appModel) []string {
	var out []string
	for _, p := range m.dash.Table().Rows() {
		out = append(out, p.ID)
	}
	return out
}

func findParent(t *testing.T, m appModel, id string) rows.Parent {
	t.Helper()
	p, ok := m.dash.Table().Find(id)
	if !ok {
		t.Fatalf("parent %s not found", id)
	}
	return p
}
