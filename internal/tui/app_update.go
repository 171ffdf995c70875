package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"verdict-cli/internal/model"
	"verdict-cli/internal/rows"
	"verdict-cli/internal/session"
)

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case reloadTickMsg:
		if m.minibufferText != "" && time.Since(m.minibufferSetAt) > minibufferAutoClearAfter {
			m.clearMinibuffer()
		}
		return m, tickCmd()

	case regradeReloadMsg:
		if msg.topic != m.dash.Topic() {
			return m, nil
		}
		cmd := m.refresh()
		return m, cmd

	case topicsLoadedMsg:
		m.settle()
		m.topicsLoading = false
		m.topicsCached = msg.cached
		if msg.err != nil && !msg.cached {
			m.showError("Failed to fetch topics: " + msg.err.Error())
			return m, nil
		}
		m.topics = msg.topics
		m.topicsCursor = clamp(m.topicsCursor, 0, len(m.visibleTopics())-1)
		if msg.cached {
			m.showError("Offline: showing cached topics")
		} else if hasStore(m.st) {
			if err := m.st.SaveTopics(m.ctx, m.topics); err != nil {
				m.log.Warn("save topics failed", zap.Error(err))
			}
		}
		return m, nil

	case criteriaLoadedMsg:
		m.settle()
		m.criteriaLoaded = true
		if msg.err != nil {
			m.showError("Failed to load criteria; the server defaults will be used")
			return m, nil
		}
		m.criteria = msg.types
		for _, c := range m.criteria {
			if c.IsDefault {
				m.criteriaPicked[c.Name] = true
			}
		}
		return m, nil

	case loadDoneMsg:
		m.settle()
		res := m.dash.ApplyLoad(m.ctx, msg.res)
		if !res.Stale && !res.OK && session.IsNotAuthenticated(msg.res) {
			res.Message = "Not authenticated: set VERDICT_TOKEN or `verdict config set token`"
		}
		cmd := m.report(res)
		return m, cmd

	case generateDoneMsg:
		m.settle()
		cmd := m.report(m.dash.ApplyGenerate(m.ctx, msg.res))
		return m, cmd

	case assessDoneMsg:
		m.settle()
		cmd := m.report(m.dash.ApplyAssess(m.ctx, msg.res))
		return m, cmd

	case editDoneMsg:
		m.settle()
		cmd := m.report(m.dash.ApplyEdit(m.ctx, msg.res))
		return m, cmd

	case deleteDoneMsg:
		m.settle()
		cmd := m.report(m.dash.ApplyDelete(m.ctx, msg.res))
		return m, cmd

	case autoGradeDoneMsg:
		m.settle()
		cmd := m.report(m.dash.ApplyAutoGrade(m.ctx, msg.res))
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && (m.modal == modalNone || msg.String() == "ctrl+c") {
			return m.quit()
		}
		if m.modal != modalNone {
			return m.updateModal(msg)
		}
		if m.view == viewTopics {
			return m.updateTopics(msg)
		}
		return m.updateTable(msg)
	}
	return m, nil
}

func (m appModel) quit() (tea.Model, tea.Cmd) {
	m.saveUIState()
	if m.cancel != nil {
		m.cancel()
	}
	return m, tea.Quit
}

func (m appModel) updateTopics(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visibleTopics()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.topicsCursor = clamp(m.topicsCursor-1, 0, len(visible)-1)
	case key.Matches(msg, m.keys.Down):
		m.topicsCursor = clamp(m.topicsCursor+1, 0, len(visible)-1)
	case key.Matches(msg, m.keys.Expand):
		if m.topicsCursor < len(visible) {
			cmd := m.selectTopic(visible[m.topicsCursor].Name)
			return m, cmd
		}
	case key.Matches(msg, m.keys.Filter):
		m.filterBefore = m.topicQuery
		m.input.SetValue(m.topicQuery)
		m.input.CursorEnd()
		m.input.Focus()
		m.modal = modalTopicFilter
	case key.Matches(msg, m.keys.Refresh):
		cmd := m.beginTopics()
		return m, cmd
	case key.Matches(msg, m.keys.Cancel):
		if m.dash.Topic() != "" {
			m.view = viewTable
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m appModel) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	t := m.dash.Table()

	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keys.Cancel):
		if _, _, dragging := m.dash.Dragging(); dragging {
			m.dash.DragCancel()
			m.showMinibuffer("Move cancelled")
		} else if t.SelectedCount() > 0 {
			t.ClearSelection()
		}

	case key.Matches(msg, m.keys.Drag):
		m.toggleDrag()

	case key.Matches(msg, m.keys.Expand):
		if _, _, dragging := m.dash.Dragging(); dragging {
			m.toggleDrag()
			break
		}
		m.toggleFocusedExpansion()

	case key.Matches(msg, m.keys.MoveUp), key.Matches(msg, m.keys.MoveDown):
		delta := 1
		if key.Matches(msg, m.keys.MoveUp) {
			delta = -1
		}
		r, _, ok := m.focused()
		if !ok {
			break
		}
		if rows.IsChild(r) {
			m.showError("Only test statements can be moved")
			break
		}
		m.dash.MoveBy(m.ctx, r.RowID(), delta)

	case key.Matches(msg, m.keys.ExpandAll):
		m.dash.ExpandAll()
	case key.Matches(msg, m.keys.CollapseAll):
		m.dash.CollapseAll()

	case key.Matches(msg, m.keys.Select):
		if r, _, ok := m.focused(); ok && rows.Selectable(r) {
			t.ToggleSelected(r.RowID())
		}
	case key.Matches(msg, m.keys.SelectPage):
		t.SelectAllPage(!t.AllPageSelected())
	case key.Matches(msg, m.keys.ClearSelection):
		t.ClearSelection()

	case key.Matches(msg, m.keys.Generate):
		ids := m.targets()
		if len(ids) == 0 {
			m.showError("Select at least one test statement")
			break
		}
		m.pendingGenerate = ids
		m.criteriaCursor = 0
		m.modal = modalCriteria
		if !m.criteriaLoaded {
			cmd = m.criteriaCmd()
		}

	case key.Matches(msg, m.keys.Accept), key.Matches(msg, m.keys.Reject):
		gt := model.GroundTruthAcceptable
		if key.Matches(msg, m.keys.Reject) {
			gt = model.GroundTruthUnacceptable
		}
		cmd = m.assessFocused(gt)

	case key.Matches(msg, m.keys.Edit):
		r, _, ok := m.focused()
		p, isParent := r.(rows.Parent)
		if !ok || !isParent {
			m.showError("Only test statements can be edited")
			break
		}
		m.editID = p.ID
		m.editGT = p.GroundTruth
		m.input.SetValue(p.Statement)
		m.input.CursorEnd()
		m.input.Focus()
		m.modal = modalEdit

	case key.Matches(msg, m.keys.Delete):
		ids := m.targets()
		if len(ids) == 0 {
			break
		}
		m.pendingDelete = ids
		m.modal = modalConfirmDelete

	case key.Matches(msg, m.keys.AutoGrade):
		ids := m.targets()
		if len(ids) == 0 {
			m.showError("Select at least one test statement")
			break
		}
		call, ok := m.dash.BeginAutoGrade(ids)
		if !ok {
			m.showError("Already updating the selected test statements")
			break
		}
		m.showMinibuffer(fmt.Sprintf("Grading %d test(s)…", len(call.IDs)))
		cmd = m.autoGradeCmd(call)

	case key.Matches(msg, m.keys.Filter):
		m.filterBefore = t.FilterValue(rows.ColStatement)
		m.input.SetValue(m.filterBefore)
		m.input.CursorEnd()
		m.input.Focus()
		m.modal = modalFilter

	case key.Matches(msg, m.keys.CycleAgreement):
		m.agreeIdx = (m.agreeIdx + 1) % len(agreementFilters)
		t.SetFilter(rows.ColAgreement, agreementFilters[m.agreeIdx])

	case key.Matches(msg, m.keys.SortStatement):
		t.ToggleSort(rows.ColStatement)
	case key.Matches(msg, m.keys.SortAI):
		t.ToggleSort(rows.ColAIAssessment)
	case key.Matches(msg, m.keys.SortGroundTruth):
		t.ToggleSort(rows.ColGroundTruth)
	case key.Matches(msg, m.keys.SortAgreement):
		t.ToggleSort(rows.ColAgreement)
	case key.Matches(msg, m.keys.ToggleCriteria):
		t.SetColumnVisible(rows.ColCriteria, !t.ColumnVisible(rows.ColCriteria))
	case key.Matches(msg, m.keys.ToggleLabeler):
		t.SetColumnVisible(rows.ColLabeler, !t.ColumnVisible(rows.ColLabeler))

	case key.Matches(msg, m.keys.NextPage):
		t.NextPage()
	case key.Matches(msg, m.keys.PrevPage):
		t.PreviousPage()
	case key.Matches(msg, m.keys.FirstPage):
		t.FirstPage()
	case key.Matches(msg, m.keys.LastPage):
		t.LastPage()
	case key.Matches(msg, m.keys.PageSize):
		t.SetPageSize(nextPageSize(t.PageSize()))

	case key.Matches(msg, m.keys.Detail):
		m.showDetail = !m.showDetail
	case key.Matches(msg, m.keys.Refresh):
		cmd = m.refresh()
	case key.Matches(msg, m.keys.Topics):
		m.dash.DragCancel()
		m.view = viewTopics
		if len(m.topics) == 0 {
			cmd = m.beginTopics()
		}
	}

	m.syncCursor()
	return m, cmd
}

func (m *appModel) toggleDrag() {
	if _, _, dragging := m.dash.Dragging(); dragging {
		if m.dash.DragDrop(m.ctx) {
			m.showMinibuffer("Moved")
		} else {
			m.showMinibuffer("Move cancelled")
		}
		return
	}
	r, _, ok := m.focused()
	if !ok {
		return
	}
	if !m.dash.DragStart(r.RowID()) {
		m.showError("Only test statements can be moved")
		return
	}
	m.showMinibuffer("Moving: j/k to choose a place, m or enter to drop, esc to cancel")
}

func (m *appModel) toggleFocusedExpansion() {
	r, _, ok := m.focused()
	if !ok {
		return
	}
	switch x := r.(type) {
	case rows.Parent:
		m.dash.ToggleExpanded(x.ID)
		if m.dash.Expansion().IsExpanded(x.ID) && !m.dash.Cache().Has(x.ID) {
			m.showMinibuffer("No perturbations yet: press g to analyze AI behavior")
		}
	case rows.Child:
		m.dash.ToggleExpanded(x.ParentID)
		m.cursorID = x.ParentID
	}
}

func (m *appModel) assessFocused(gt model.GroundTruth) tea.Cmd {
	r, _, ok := m.focused()
	if !ok {
		return nil
	}
	p, isParent := r.(rows.Parent)
	if !isParent {
		m.showError("Perturbations are graded with their test statement")
		return nil
	}
	call, ok := m.dash.BeginAssess(p.ID, gt)
	if !ok {
		if p.GroundTruth.Graded() {
			m.showError("Already assessed: use e to change the ground truth")
		}
		return nil
	}
	return m.assessCmd(call)
}

func nextPageSize(cur int) int {
	for i, n := range rows.PageSizes {
		if n == cur {
			return rows.PageSizes[(i+1)%len(rows.PageSizes)]
		}
	}
	return rows.PageSizes[0]
}

// Modals

func (m appModel) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.modal {
	case modalFilter:
		return m.updateFilter(msg)
	case modalEdit:
		return m.updateEdit(msg)
	case modalConfirmDelete:
		return m.updateConfirmDelete(msg)
	case modalCriteria:
		return m.updateCriteria(msg)
	case modalTopicFilter:
		return m.updateTopicFilter(msg)
	}
	m.modal = modalNone
	return m, nil
}

func (m *appModel) closeModal() {
	m.modal = modalNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m appModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := m.dash.Table()
	switch msg.String() {
	case "esc":
		t.SetFilter(rows.ColStatement, m.filterBefore)
		m.closeModal()
		m.syncCursor()
		return m, nil
	case "enter":
		m.closeModal()
		m.syncCursor()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	// Filter as you type.
	t.SetFilter(rows.ColStatement, m.input.Value())
	m.syncCursor()
	return m, cmd
}

func (m appModel) updateTopicFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.topicQuery = m.filterBefore
		m.closeModal()
		m.topicsCursor = clamp(m.topicsCursor, 0, len(m.visibleTopics())-1)
		return m, nil
	case "enter":
		m.closeModal()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.topicQuery = strings.TrimSpace(m.input.Value())
	m.topicsCursor = 0
	return m, cmd
}

func (m appModel) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeModal()
		return m, nil
	case "tab":
		m.editGT = nextGroundTruth(m.editGT)
		return m, nil
	case "enter":
		if strings.TrimSpace(m.input.Value()) == "" {
			m.showError("Statement cannot be empty")
			return m, nil
		}
		call, ok := m.dash.BeginEdit(m.editID, m.input.Value(), m.editGT)
		m.closeModal()
		if !ok {
			m.showError("Failed to edit test")
			return m, nil
		}
		cmd := m.editCmd(call)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func nextGroundTruth(g model.GroundTruth) model.GroundTruth {
	switch g {
	case model.GroundTruthAcceptable:
		return model.GroundTruthUnacceptable
	case model.GroundTruthUnacceptable:
		return model.GroundTruthUngraded
	default:
		return model.GroundTruthAcceptable
	}
}

func (m appModel) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		ids := m.pendingDelete
		m.pendingDelete = nil
		m.closeModal()
		call, ok := m.dash.BeginDelete(ids)
		if !ok {
			return m, nil
		}
		m.showMinibuffer(fmt.Sprintf("Deleting %d test(s)…", len(call.IDs)))
		cmd := m.deleteCmd(call)
		return m, cmd
	case "n", "esc":
		m.pendingDelete = nil
		m.closeModal()
	}
	return m, nil
}

func (m appModel) updateCriteria(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.pendingGenerate = nil
		m.closeModal()
		return m, nil
	case "up", "k":
		m.criteriaCursor = clamp(m.criteriaCursor-1, 0, len(m.criteria)-1)
	case "down", "j":
		m.criteriaCursor = clamp(m.criteriaCursor+1, 0, len(m.criteria)-1)
	case " ":
		if m.criteriaCursor < len(m.criteria) {
			name := m.criteria[m.criteriaCursor].Name
			m.criteriaPicked[name] = !m.criteriaPicked[name]
		}
	case "enter":
		ids := m.pendingGenerate
		m.pendingGenerate = nil
		m.closeModal()
		call, ok := m.dash.BeginGenerate(ids, m.pickedCriteria())
		if !ok {
			m.showError("Already analyzing the selected test statements")
			return m, nil
		}
		m.showMinibuffer(fmt.Sprintf("Analyzing %d test statement(s)…", len(call.IDs)))
		cmd := m.generateCmd(call)
		return m, cmd
	}
	return m, nil
}

// pickedCriteria lists the chosen criteria in menu order. None picked means server defaults.
func (m appModel) pickedCriteria() []string {
	var out []string
	for _, c := range m.criteria {
		if m.criteriaPicked[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}
