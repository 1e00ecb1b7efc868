package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Error is a backend failure normalized from a non-2xx response.
type Error struct {
	// Status is the HTTP status code
	Status int
	// Code is the backend error code, e.g. "group_not_found"
	Code string
	// Message is the human-readable backend message
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// decodeError reads the error envelope {"error":{"code","message"}} from a
// failed response. A body that is not in that shape still yields a usable
// *Error from the status line.
func decodeError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	data, err := io.ReadAll(resp.Body)
	if err == nil {
		_ = json.Unmarshal(data, &envelope)
	}

	msg := envelope.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &Error{
		Status:  resp.StatusCode,
		Code:    envelope.Error.Code,
		Message: msg,
	}
}

// IsAuth reports whether err is a 401/403 backend response. Callers treat
// this as "session expired": clear local auth state and ask for /login.
func IsAuth(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 backend response.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsValidation reports whether err is a 400/422 backend response.
func IsValidation(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity
}

// IsConflict reports whether err is a 409 backend response. The reorder
// endpoint answers 409 when the submitted ids no longer match the group.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}
