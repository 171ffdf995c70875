package tui

import (
	"time"

	"verdict-cli/internal/model"
	"verdict-cli/internal/session"
)

type view int

const (
	viewTopics view = iota
	viewTable
)

func (v view) String() string {
	if v == viewTable {
		return "table"
	}
	return "topics"
}

type modal int

const (
	modalNone modal = iota
	modalFilter
	modalEdit
	modalConfirmDelete
	modalCriteria
	modalTopicFilter
)

// minibufferAutoClearAfter is how long a status message stays in the footer.
const minibufferAutoClearAfter = 4 * time.Second

// reloadTickMsg drives periodic housekeeping (minibuffer auto-clear).
type reloadTickMsg struct{}

// regradeReloadMsg refreshes topic once the service has had time to recompute verdicts.
type regradeReloadMsg struct{ topic string }

type topicsLoadedMsg struct {
	topics []model.Topic
	cached bool
	err    error
}

type criteriaLoadedMsg struct {
	types []model.CriteriaType
	err   error
}

type loadDoneMsg struct{ res session.LoadResult }

type generateDoneMsg struct{ res session.GenerateResult }

type assessDoneMsg struct{ res session.AssessResult }

type editDoneMsg struct{ res session.EditResult }

type deleteDoneMsg struct{ res session.DeleteResult }

type autoGradeDoneMsg struct{ res session.AutoGradeResult }

// agreementFilters is the cycle of the agreement filter key; "" shows every row.
var agreementFilters = []string{"", "mismatch", "match", "pending"}

// regradeReloadDelay is how long to wait before refetching rows the service is re-grading.
const regradeReloadDelay = 2 * time.Second
