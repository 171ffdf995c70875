package cli

import (
	"errors"
	"fmt"
	"strings"

	"verdict-cli/internal/session"
)

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

// errResult turns a failed session result into an error.
func errResult(res session.Result) error {
	msg := strings.TrimSpace(res.Message)
	if msg == "" {
		msg = "request failed"
	}
	return errors.New(msg)
}
