package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down       key.Binding
	Expand         key.Binding
	ExpandAll      key.Binding
	CollapseAll    key.Binding
	Select         key.Binding
	SelectPage     key.Binding
	ClearSelection key.Binding

	Generate  key.Binding
	Accept    key.Binding
	Reject    key.Binding
	Edit      key.Binding
	Delete    key.Binding
	AutoGrade key.Binding

	Drag     key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Cancel   key.Binding

	Filter          key.Binding
	CycleAgreement  key.Binding
	SortStatement   key.Binding
	SortAI          key.Binding
	SortGroundTruth key.Binding
	SortAgreement   key.Binding
	ToggleCriteria  key.Binding
	ToggleLabeler   key.Binding

	NextPage  key.Binding
	PrevPage  key.Binding
	FirstPage key.Binding
	LastPage  key.Binding
	PageSize  key.Binding

	Detail  key.Binding
	Refresh key.Binding
	Topics  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:             key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:           key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Expand:         key.NewBinding(key.WithKeys("enter", "right", "l"), key.WithHelp("enter", "expand/collapse")),
		ExpandAll:      key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "expand all")),
		CollapseAll:    key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "collapse all")),
		Select:         key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		SelectPage:     key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "select page")),
		ClearSelection: key.NewBinding(key.WithKeys("V"), key.WithHelp("V", "clear selection")),

		Generate:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "analyze behavior")),
		Accept:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "mark acceptable")),
		Reject:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "mark unacceptable")),
		Edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		AutoGrade: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "auto-grade")),

		Drag:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "pick up/drop")),
		MoveUp:   key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
		MoveDown: key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),

		Filter:          key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		CycleAgreement:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "agreement filter")),
		SortStatement:   key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "sort statement")),
		SortAI:          key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "sort AI")),
		SortGroundTruth: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "sort ground truth")),
		SortAgreement:   key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "sort agreement")),
		ToggleCriteria:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "criteria column")),
		ToggleLabeler:   key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "labeler column")),

		NextPage:  key.NewBinding(key.WithKeys("]", "pgdown"), key.WithHelp("]", "next page")),
		PrevPage:  key.NewBinding(key.WithKeys("[", "pgup"), key.WithHelp("[", "prev page")),
		FirstPage: key.NewBinding(key.WithKeys("{", "home"), key.WithHelp("{", "first page")),
		LastPage:  key.NewBinding(key.WithKeys("}", "end"), key.WithHelp("}", "last page")),
		PageSize:  key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "page size")),

		Detail:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "detail")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Topics:  key.NewBinding(key.WithKeys("t", "backspace"), key.WithHelp("t", "topics")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Expand, k.Select, k.Generate, k.Accept, k.Reject, k.Drag, k.Filter, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Expand, k.ExpandAll, k.CollapseAll, k.Detail},
		{k.Select, k.SelectPage, k.ClearSelection, k.Generate, k.AutoGrade},
		{k.Accept, k.Reject, k.Edit, k.Delete, k.Refresh},
		{k.Drag, k.MoveUp, k.MoveDown, k.Cancel},
		{k.Filter, k.CycleAgreement, k.SortStatement, k.SortAI, k.SortGroundTruth, k.SortAgreement, k.ToggleCriteria, k.ToggleLabeler},
		{k.NextPage, k.PrevPage, k.FirstPage, k.LastPage, k.PageSize, k.Topics, k.Quit},
	}
}

// topicKeys is the reduced key map of the topic picker.
type topicKeys struct{ k keyMap }

func (t topicKeys) ShortHelp() []key.Binding {
	return []key.Binding{t.k.Up, t.k.Down, t.k.Expand, t.k.Filter, t.k.Refresh, t.k.Quit}
}

func (t topicKeys) FullHelp() [][]key.Binding { return [][]key.Binding{t.ShortHelp()} }
