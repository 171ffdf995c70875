package store

import (
	"os"
	"path/filepath"
	"testing"

	"verdict-cli/internal/rows"

	"github.com/google/go-cmp/cmp"
)

func TestTUIState_SaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	s := Store{Dir: t.TempDir()}

	st0, err := s.LoadTUIState()
	if err != nil {
		t.Fatalf("LoadTUIState: %v", err)
	}
	if st0 == nil || st0.Version != 1 {
		t.Fatalf("expected default Version=1; got %#v", st0)
	}

	want := &TUIState{
		Version:    1,
		View:       "table",
		ShowDetail: true,
		Sorting:    map[string][]rows.Sort{"Energy": {{Column: rows.ColAgreement, Desc: true}}},
		Hidden:     map[string][]string{"Energy": {"criteria"}},
	}
	if err := s.SaveTUIState(want); err != nil {
		t.Fatalf("SaveTUIState: %v", err)
	}
	got, err := s.LoadTUIState()
	if err != nil {
		t.Fatalf("LoadTUIState: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestTUIState_CorruptFileReadsAsDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, tuiStateFileName), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, err := Store{Dir: dir}.LoadTUIState()
	if err != nil {
		t.Fatalf("LoadTUIState: %v", err)
	}
	if st.Version != 1 || st.View != "" {
		t.Fatalf("expected default state, got %#v", st)
	}
}

func TestTUIState_TopicLayout(t *testing.T) {
	st := &TUIState{}
	tb := rows.NewTable(10)
	tb.SetSorting(rows.Sort{Column: rows.ColStatement})
	tb.SetColumnVisible(rows.ColLabeler, false)
	tb.SetColumnVisible(rows.ColAgreement, true)

	st.SetTopicLayout("Energy", tb.State())
	sorts, hidden := st.TopicLayout("Energy")
	if diff := cmp.Diff([]rows.Sort{{Column: rows.ColStatement}}, sorts); diff != "" {
		t.Fatalf("sorting mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]rows.Column{rows.ColLabeler}, hidden); diff != "" {
		t.Fatalf("hidden mismatch (-want +got):\n%s", diff)
	}

	st.SetTopicLayout("Energy", rows.NewTable(10).State())
	if _, ok := st.Sorting["Energy"]; ok {
		t.Fatalf("expected cleared sorting to be dropped")
	}
	if s, h := st.TopicLayout("Motion"); len(s) != 0 || len(h) != 0 {
		t.Fatalf("expected empty layout for an unknown topic, got %v %v", s, h)
	}
}
