package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"verdict-cli/internal/model"
	"verdict-cli/internal/rows"
)

const (
	defaultWidth  = 100
	defaultHeight = 30

	colSelectW    = 3
	colTwistyW    = 2
	colCriteriaW  = 16
	colAIW        = 9
	colGroundW    = 13
	colAgreementW = 11
	colLabelerW   = 12
	minStatementW = 16
	detailMinW    = 90
)

func (m appModel) View() string {
	w, h := m.size()

	var body string
	switch m.view {
	case viewTopics:
		body = m.viewTopics(w)
	default:
		body = m.viewDashboard(w, h-m.footerHeight())
	}
	parts := []string{body}
	if box := m.viewModal(w); box != "" {
		parts = append(parts, box)
	}
	parts = append(parts, m.viewFooter(w))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m appModel) size() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

func (m appModel) footerHeight() int {
	n := 2
	if m.help.ShowAll {
		n += 6
	}
	if m.modal != modalNone {
		n += 6
	}
	return n
}

// Topic picker

func (m appModel) viewTopics(width int) string {
	var b strings.Builder
	title := "Topics"
	if m.topicsLoading {
		title += " " + m.spinner.View()
	} else if m.topicsCached {
		title += styleMuted().Render(" (cached)")
	}
	b.WriteString(styleHeader().Render(title))
	b.WriteString("\n")
	b.WriteString(styleChrome().Render(strings.Repeat(glyphHRule(), max(width, 1))))
	b.WriteString("\n")

	if len(m.topics) == 0 && !m.topicsLoading {
		b.WriteString(styleMuted().Render("No topics."))
		return b.String()
	}
	visible := m.visibleTopics()
	if m.topicQuery != "" {
		b.WriteString(styleMuted().Render(fmt.Sprintf("/%s  %d of %d", m.topicQuery, len(visible), len(m.topics))))
		b.WriteString("\n")
	}
	for i, tp := range visible {
		line := "  " + tp.Name
		if tp.TestCount > 0 {
			line += styleMuted().Render(fmt.Sprintf("  %d test(s)", tp.TestCount))
		}
		if tp.Name == m.dash.Topic() {
			line += styleMuted().Render("  (open)")
		}
		if i == m.topicsCursor {
			line = styleCursor().Render(fitCell("› "+tp.Name, width))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Results table

func (m appModel) viewDashboard(width, height int) string {
	tableW := width
	showDetail := m.showDetail && width >= detailMinW
	if showDetail {
		tableW = width * 3 / 5
	}
	table := normalizePane(m.viewTable(tableW, height), tableW, height)
	if !showDetail {
		return table
	}
	detailW := width - tableW - 1
	sep := strings.TrimRight(strings.Repeat(styleChrome().Render("│")+"\n", height), "\n")
	detail := normalizePane(m.viewDetail(detailW), detailW, height)
	return lipgloss.JoinHorizontal(lipgloss.Top, table, sep, detail)
}

type tableColumns struct {
	statement int
	criteria  bool
	labeler   bool
}

func (m appModel) layoutColumns(v rows.View, width int) tableColumns {
	cols := tableColumns{
		criteria: v.ColumnVisible(rows.ColCriteria),
		labeler:  v.ColumnVisible(rows.ColLabeler) && width >= 130,
	}
	fixed := colSelectW + colTwistyW + colAIW + colGroundW + colAgreementW + 5
	if cols.criteria {
		fixed += colCriteriaW + 1
	}
	if cols.labeler {
		fixed += colLabelerW + 1
	}
	cols.statement = max(width-fixed, minStatementW)
	return cols
}

func (m appModel) viewTable(width, height int) string {
	v := m.dash.View()
	t := m.dash.Table()
	cols := m.layoutColumns(v, width)

	var lines []string
	lines = append(lines, m.viewTitle(v))
	if f := m.viewFilters(); f != "" {
		lines = append(lines, f)
	}
	lines = append(lines, styleHeader().Render(m.headerLine(v, cols)))
	lines = append(lines, styleChrome().Render(strings.Repeat(glyphHRule(), max(width, 1))))

	switch {
	case len(v.Rows) == 0 && m.dash.Loading():
		lines = append(lines, "  "+m.spinner.View()+" Loading tests…")
	case len(v.Rows) == 0 && t.Len() > 0:
		lines = append(lines, styleMuted().Render("  No results."))
	case len(v.Rows) == 0 && m.dash.Topic() == "":
		lines = append(lines, styleMuted().Render("  Press t to choose a topic."))
	case len(v.Rows) == 0:
		lines = append(lines, styleMuted().Render("  No tests in this topic."))
	}

	avail := max(height-len(lines)-1, 1)
	start := 0
	if m.cursor >= avail {
		start = m.cursor - avail + 1
	}
	end := min(start+avail, len(v.Rows))

	active, over, dragging := m.dash.Dragging()
	for i := start; i < end; i++ {
		r := v.Rows[i]
		cursor := i == m.cursor
		line := m.rowLine(v, r, cols, !cursor)
		switch {
		case cursor:
			line = styleCursor().Render(fitCell(line, width))
		case dragging && r.RowID() == over && over != active:
			line = styleDropTarget().Render(line)
		}
		lines = append(lines, line)
	}

	lines = append(lines, styleMuted().Render(m.paginationLine(v)))
	return strings.Join(lines, "\n")
}

func (m appModel) viewTitle(v rows.View) string {
	topic := m.dash.Topic()
	if topic == "" {
		topic = "(no topic)"
	}
	title := styleHeader().Render(topic)
	meta := fmt.Sprintf("%d of %d row(s) selected", v.Selected, v.Filtered)
	parts := []string{title, styleMuted().Render(meta)}
	if m.dash.Loading() && len(v.Rows) > 0 {
		parts = append(parts, m.spinner.View()+styleMuted().Render(" refreshing"))
	}
	if active, _, ok := m.dash.Dragging(); ok {
		parts = append(parts, styleBadge(colorAccent).Render(glyphDragHandle()+" moving "+active))
	}
	return strings.Join(parts, styleMuted().Render("  "+glyphSep()+"  "))
}

func (m appModel) viewFilters() string {
	t := m.dash.Table()
	var parts []string
	if s := t.FilterValue(rows.ColStatement); s != "" {
		parts = append(parts, fmt.Sprintf("statement ~ %q", s))
	}
	if a := t.FilterValue(rows.ColAgreement); a != "" {
		parts = append(parts, "agreement = "+a)
	}
	if len(parts) == 0 {
		return ""
	}
	return styleChrome().Render("filter: " + strings.Join(parts, "  "+glyphSep()+"  "))
}

func (m appModel) headerLine(v rows.View, cols tableColumns) string {
	sorted := map[rows.Column]string{}
	for _, s := range v.State.Sorting {
		if s.Desc {
			sorted[s.Column] = " " + glyphSortDesc()
		} else {
			sorted[s.Column] = " " + glyphSortAsc()
		}
	}
	check := glyphUnchecked()
	if m.dash.Table().AllPageSelected() {
		check = glyphChecked()
	}
	cells := []string{
		fitCell(check, colSelectW),
		fitCell("", colTwistyW),
		fitCell("Statement"+sorted[rows.ColStatement], cols.statement),
	}
	if cols.criteria {
		cells = append(cells, fitCell("Criteria", colCriteriaW))
	}
	cells = append(cells,
		fitCell("AI"+sorted[rows.ColAIAssessment], colAIW),
		fitCell("Ground truth"+sorted[rows.ColGroundTruth], colGroundW),
		fitCell("Agreement"+sorted[rows.ColAgreement], colAgreementW),
	)
	if cols.labeler {
		cells = append(cells, fitCell("Labeler", colLabelerW))
	}
	return strings.Join(cells, " ")
}

// rowLine renders one table row. Colors are left off for the cursor row so its highlight
// spans the whole line.
func (m appModel) rowLine(v rows.View, r rows.Row, cols tableColumns, color bool) string {
	f := r.Data()
	var sel, twisty, statement, criteria string

	switch x := r.(type) {
	case rows.Parent:
		sel = glyphUnchecked()
		if v.IsSelected(x.ID) {
			sel = glyphChecked()
		}
		switch {
		case m.isDragged(x.ID):
			twisty = glyphDragHandle()
		case m.dash.IsGenerating(x.ID):
			twisty = m.spinner.View()
		case m.dash.Cache().Has(x.ID) && m.dash.Expansion().IsExpanded(x.ID):
			twisty = glyphTwistyExpanded()
		case m.dash.Cache().Has(x.ID):
			twisty = glyphTwistyCollapsed()
		}
		statement = x.Statement
		if n := len(m.dash.Cache().Get(x.ID)); n > 0 {
			criteria = fmt.Sprintf("%d variant(s)", n)
		}
		if m.dash.MutationPending(x.ID) {
			statement = glyphPending() + " " + statement
		} else if m.dash.GenerationErr(x.ID) != "" || m.dash.MutationErr(x.ID) != "" {
			statement = "! " + statement
		}
	case rows.Child:
		statement = "  " + glyphChildIndent() + " " + x.Statement
		criteria = x.PerturbationType
	}

	cells := []string{
		fitCell(sel, colSelectW),
		fitCell(twisty, colTwistyW),
		fitCell(statement, cols.statement),
	}
	if cols.criteria {
		cells = append(cells, fitCell(criteria, colCriteriaW))
	}
	cells = append(cells,
		fitCell(aiCell(f.AIAssessment, color), colAIW),
		fitCell(groundTruthCell(f.GroundTruth, color), colGroundW),
		fitCell(agreementCell(v.Agreement(r), color), colAgreementW),
	)
	if cols.labeler {
		cells = append(cells, fitCell(f.Labeler, colLabelerW))
	}
	line := strings.Join(cells, " ")
	if color && rows.IsChild(r) {
		return styleMuted().Render(line)
	}
	return line
}

func (m appModel) isDragged(id string) bool {
	active, _, ok := m.dash.Dragging()
	return ok && active == id
}

func aiCell(a model.AIAssessment, color bool) string {
	s := string(a)
	if a == model.AIGrading {
		s = "grading" + glyphPending()
	}
	if !color {
		return s
	}
	switch a {
	case model.AIPass:
		return styleBadge(colorMatch).Render(s)
	case model.AIFail:
		return styleBadge(colorMismatch).Render(s)
	default:
		return styleBadge(colorPending).Render(s)
	}
}

func groundTruthCell(g model.GroundTruth, color bool) string {
	if !color || g != model.GroundTruthUngraded {
		return string(g)
	}
	return styleMuted().Render(string(g))
}

func agreementCell(a rows.Agreement, color bool) string {
	var glyph string
	var c lipgloss.TerminalColor
	switch a {
	case rows.AgreementMatch:
		glyph, c = glyphMatch(), colorMatch
	case rows.AgreementMismatch:
		glyph, c = glyphMismatch(), colorMismatch
	default:
		glyph, c = glyphPending(), colorPending
	}
	s := glyph + " " + a.String()
	if !color {
		return s
	}
	return styleBadge(c).Render(s)
}

func (m appModel) paginationLine(v rows.View) string {
	pages := max(v.PageCount, 1)
	return fmt.Sprintf("Page %d of %d  %s  %d per page  %s  %d test(s)",
		v.PageIndex+1, pages, glyphSep(), m.dash.Table().PageSize(), glyphSep(), v.Filtered)
}

// Footer and modals

func (m appModel) viewFooter(width int) string {
	var status string
	switch {
	case m.minibufferText != "" && m.minibufferErr:
		status = styleErrorBar().Render(m.minibufferText)
	case m.minibufferText != "":
		status = m.minibufferText
	case m.busy():
		status = m.spinner.View() + styleMuted().Render(" working")
	}
	status = fitCell(status, width)

	var keys string
	if m.view == viewTopics {
		keys = m.help.View(topicKeys{k: m.keys})
	} else {
		keys = m.help.View(m.keys)
	}
	return status + "\n" + keys
}

func (m appModel) viewModal(width int) string {
	boxW := max(min(width-4, 80), 20)
	var title, body string
	switch m.modal {
	case modalFilter:
		title = "Filter statements"
		body = m.input.View() + "\n" + styleMuted().Render("enter apply  esc cancel")
	case modalTopicFilter:
		title = "Filter topics"
		body = m.input.View() + "\n" + styleMuted().Render("enter apply  esc cancel")
	case modalEdit:
		title = "Edit test"
		body = m.input.View() + "\n" +
			"Ground truth: " + styleBadge(colorAccent).Render(string(m.editGT)) + "\n" +
			styleMuted().Render("enter save  tab ground truth  esc cancel")
	case modalConfirmDelete:
		title = "Delete tests"
		body = fmt.Sprintf("Delete %d test(s)? This cannot be undone.", len(m.pendingDelete)) + "\n" +
			styleMuted().Render("y delete  n cancel")
	case modalCriteria:
		title = fmt.Sprintf("Analyze AI behavior for %d test statement(s)", len(m.pendingGenerate))
		body = m.criteriaBody()
	default:
		return ""
	}
	return styleModal().Width(boxW).Render(styleHeader().Render(title) + "\n" + body)
}

func (m appModel) criteriaBody() string {
	var b strings.Builder
	switch {
	case !m.criteriaLoaded:
		b.WriteString(m.spinner.View() + " Loading criteria…\n")
	case len(m.criteria) == 0:
		b.WriteString(styleMuted().Render("No criteria; the server defaults will be used.") + "\n")
	}
	for i, c := range m.criteria {
		check := glyphUnchecked()
		if m.criteriaPicked[c.Name] {
			check = glyphChecked()
		}
		line := check + " " + c.Name
		if c.IsCustom {
			line += styleMuted().Render(" (custom)")
		}
		if i == m.criteriaCursor {
			line = styleCursor().Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(styleMuted().Render("space toggle  enter analyze  esc cancel"))
	return b.String()
}
