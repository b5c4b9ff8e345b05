package api

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

// User-facing fallback messages. The backend speaks Indonesian, so do we.
const (
	MessageUnknown     = "Terjadi kesalahan tidak diketahui"
	MessageServer      = "Terjadi kesalahan pada server"
	MessageUnreachable = "Tidak dapat terhubung ke server"
)

// ErrorResponse is the body the backend sends with a non-2xx status.
type ErrorResponse struct {
	Error     bool                `json:"error"`
	Message   string              `json:"message"`
	Timestamp string              `json:"timestamp"`
	Detail    string              `json:"detail,omitempty"`
	Errors    map[string][]string `json:"errors,omitempty"`
}

// Error is the normalized shape of every failure surfaced to callers:
// transport errors, server errors and 422 field validation errors alike.
type Error struct {
	Message string
	Detail  string
	Errors  map[string][]string
	Status  int
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Message, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// FieldErrors returns the validation messages reported for one form field.
func (e *Error) FieldErrors(field string) []string {
	if e == nil || e.Errors == nil {
		return nil
	}
	return e.Errors[field]
}

// Fields returns the names of fields with validation errors, sorted.
func (e *Error) Fields() []string {
	if e == nil {
		return nil
	}
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// IsUnauthorized reports whether the server rejected the credentials.
func (e *Error) IsUnauthorized() bool {
	return e != nil && e.Status == 401
}

// NewErrorFromResponse builds an Error from a decoded error body.
func NewErrorFromResponse(status int, body *ErrorResponse) *Error {
	if body == nil {
		return &Error{Message: MessageServer, Status: status}
	}
	msg := body.Message
	if msg == "" {
		msg = MessageServer
	}
	return &Error{
		Message: msg,
		Detail:  body.Detail,
		Errors:  body.Errors,
		Status:  status,
	}
}

// ParseError normalizes any error returned by the client into an *Error.
func ParseError(err error) *Error {
	if err == nil {
		return &Error{Message: MessageUnknown}
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if isNetworkError(err) {
		return &Error{Message: MessageUnreachable}
	}

	if msg := err.Error(); msg != "" {
		return &Error{Message: msg}
	}
	return &Error{Message: MessageUnknown}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}
