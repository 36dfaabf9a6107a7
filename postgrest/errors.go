package postgrest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	// CodeNoRows is returned when Single matched zero or several rows.
	CodeNoRows = "PGRST116"
	// CodeUniqueViolation is the Postgres unique_violation SQLSTATE.
	CodeUniqueViolation = "23505"
)

// Error is a response the PostgREST API rejected.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("supabase API error %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("supabase API error %d: %s", e.StatusCode, msg)
}

func parseError(status int, body []byte) *Error {
	apiErr := &Error{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// IsNotFound reports whether err is a Single query that did not match exactly one row.
func IsNotFound(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeNoRows
}

// IsConflict reports whether err is a unique constraint violation.
func IsConflict(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == CodeUniqueViolation || apiErr.StatusCode == http.StatusConflict
}
