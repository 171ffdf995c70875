package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"verdict-cli/internal/rows"
)

const tuiStateFileName = "tui_state.json"

// TUIState is the small UI state restored on relaunch. It is best effort: a missing or
// corrupt file reads as the default state.
//
// Expansion and selection are session-only and never written here.
type TUIState struct {
	Version int `json:"version"`

	// View is one of: topics|table
	View string `json:"view,omitempty"`

	ShowDetail bool `json:"showDetail,omitempty"`

	// Per-topic table sorting and hidden columns.
	Sorting map[string][]rows.Sort `json:"sorting,omitempty"`
	Hidden  map[string][]string    `json:"hidden,omitempty"`
}

func (s Store) tuiStatePath() string {
	return filepath.Join(s.Dir, tuiStateFileName)
}

func (s Store) LoadTUIState() (*TUIState, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return &TUIState{Version: 1}, nil
	}
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.tuiStatePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &TUIState{Version: 1}, nil
		}
		return nil, err
	}
	var st TUIState
	if err := json.Unmarshal(b, &st); err != nil {
		return &TUIState{Version: 1}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return &st, nil
}

func (s Store) SaveTUIState(st *TUIState) error {
	if st == nil || strings.TrimSpace(s.Dir) == "" {
		return nil
	}
	if err := s.Ensure(); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(s.Dir, ".tui_state-*.tmp", s.tuiStatePath(), append(b, '\n'), 0o644)
}

// TopicLayout returns the saved sorting and hidden columns of topic.
func (st *TUIState) TopicLayout(topic string) ([]rows.Sort, []rows.Column) {
	if st == nil {
		return nil, nil
	}
	var hidden []rows.Column
	for _, h := range st.Hidden[topic] {
		if c, err := rows.ParseColumn(h); err == nil {
			hidden = append(hidden, c)
		}
	}
	return append([]rows.Sort(nil), st.Sorting[topic]...), hidden
}

// SetTopicLayout records the table layout of topic from its current state.
func (st *TUIState) SetTopicLayout(topic string, state rows.TableState) {
	if st == nil || strings.TrimSpace(topic) == "" {
		return
	}
	if st.Sorting == nil {
		st.Sorting = map[string][]rows.Sort{}
	}
	if st.Hidden == nil {
		st.Hidden = map[string][]string{}
	}
	if len(state.Sorting) == 0 {
		delete(st.Sorting, topic)
	} else {
		st.Sorting[topic] = append([]rows.Sort(nil), state.Sorting...)
	}
	var hidden []string
	for _, c := range rows.Columns {
		// Criteria visibility follows the perturbation cache.
		if c == rows.ColCriteria {
			continue
		}
		if vis, ok := state.Visibility[c]; ok && !vis {
			hidden = append(hidden, string(c))
		}
	}
	if len(hidden) == 0 {
		delete(st.Hidden, topic)
	} else {
		st.Hidden[topic] = hidden
	}
}
