package rows

import (
	"sort"
	"strings"
)

// Status is the per-row state of an asynchronous request.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// StatusTracker is a per-id state machine:
//
//	idle|succeeded|failed --Begin--> pending --Succeed--> succeeded
//	                                        --Fail-----> failed
//	any --Reset--> idle
//
// Transitions not on this diagram are ignored.
type StatusTracker struct {
	byID map[string]Status
	errs map[string]string
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{byID: map[string]Status{}, errs: map[string]string{}}
}

// Begin moves ids to pending and returns those that transitioned. Ids already pending are
// skipped so that a second request cannot claim them.
func (s *StatusTracker) Begin(ids ...string) []string {
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || s.byID[id] == StatusPending {
			continue
		}
		s.byID[id] = StatusPending
		delete(s.errs, id)
		out = append(out, id)
	}
	return out
}

func (s *StatusTracker) Succeed(ids ...string) {
	for _, id := range ids {
		if s.byID[id] == StatusPending {
			s.byID[id] = StatusSucceeded
		}
	}
}

func (s *StatusTracker) Fail(msg string, ids ...string) {
	for _, id := range ids {
		if s.byID[id] == StatusPending {
			s.byID[id] = StatusFailed
			s.errs[id] = msg
		}
	}
}

func (s *StatusTracker) Reset(ids ...string) {
	for _, id := range ids {
		delete(s.byID, id)
		delete(s.errs, id)
	}
}

// Clear drops every tracked id (topic switch).
func (s *StatusTracker) Clear() {
	s.byID = map[string]Status{}
	s.errs = map[string]string{}
}

func (s *StatusTracker) Get(id string) Status {
	if s == nil {
		return StatusIdle
	}
	return s.byID[id]
}

func (s *StatusTracker) IsPending(id string) bool { return s.Get(id) == StatusPending }

// Err returns the failure message recorded for id.
func (s *StatusTracker) Err(id string) string {
	if s == nil {
		return ""
	}
	return s.errs[id]
}

// Pending returns the pending ids, sorted.
func (s *StatusTracker) Pending() []string {
	if s == nil {
		return nil
	}
	var out []string
	for id, st := range s.byID {
		if st == StatusPending {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
