package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotAuthenticated is returned when no token is configured or the server rejects it.
var ErrNotAuthenticated = errors.New("not authenticated")

// RequestError is a non-2xx response from the assessment API. Detail carries the server's
// explanation (the "detail" field of the error body) when there is one.
type RequestError struct {
	Op     string
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Detail)
}

// Unwrap lets errors.Is(err, ErrNotAuthenticated) match 401 and 403 responses.
func (e *RequestError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrNotAuthenticated
	}
	return nil
}

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool { return HasStatus(err, http.StatusNotFound) }

// HasStatus reports whether err is a RequestError with the given HTTP status.
func HasStatus(err error, status int) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Status == status
}

// Explain returns the message to show a user for err: the server's detail when present,
// otherwise fallback.
func Explain(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return "not authenticated: set VERDICT_TOKEN or run `verdict config set token <token>`"
	}
	var re *RequestError
	if errors.As(err, &re) && re.Detail != "" {
		return re.Detail
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}
