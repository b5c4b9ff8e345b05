package httputil

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/platinummonkey/ssoadmin/pkg/api"
)

// Timestamp formats t the way the backend stamps its envelopes.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteEnvelope wraps data in the standard success envelope.
func WriteEnvelope[T any](w http.ResponseWriter, status int, message string, data T) error {
	return WriteJSON(w, status, api.Response[T]{
		Error:     false,
		Message:   message,
		Timestamp: Timestamp(time.Now()),
		Data:      data,
	})
}

// WritePaginated writes a list envelope with its pagination meta.
func WritePaginated[T any](w http.ResponseWriter, message string, data []T, meta api.PaginationMeta) error {
	if data == nil {
		data = []T{}
	}
	return WriteJSON(w, http.StatusOK, api.PaginatedResponse[T]{
		Error:     false,
		Message:   message,
		Timestamp: Timestamp(time.Now()),
		Data:      data,
		Meta:      meta,
	})
}

// NewMeta computes pagination meta for a page of a total result count.
func NewMeta(page, limit, total int) api.PaginationMeta {
	if page < 1 {
		page = 1
	}
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return api.PaginationMeta{
		Page:        page,
		Limit:       limit,
		TotalItems:  total,
		TotalPages:  pages,
		HasPrevPage: page > 1,
		HasNextPage: page < pages,
	}
}

// WriteAPIError writes the backend error envelope. fieldErrors may be nil.
func WriteAPIError(w http.ResponseWriter, status int, message string, fieldErrors map[string][]string) {
	WriteJSON(w, status, api.ErrorResponse{
		Error:     true,
		Message:   message,
		Timestamp: Timestamp(time.Now()),
		Errors:    fieldErrors,
	})
}

// WriteErrorMessage writes an error envelope with a message only.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteAPIError(w, status, message, nil)
}

// WriteError writes an error envelope carrying err's message.
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteValidationError writes a 422 with per-field messages.
func WriteValidationError(w http.ResponseWriter, message string, fieldErrors map[string][]string) {
	WriteAPIError(w, http.StatusUnprocessableEntity, message, fieldErrors)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteInternalError writes an internal server error response (500 Internal Server Error)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}

// WriteHTML writes a small HTML page, used by the OAuth loopback listener.
func WriteHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}
