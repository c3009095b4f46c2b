package endpoints

import (
	"fmt"
	"net/http"
	"strings"
)

// Error is the error object reported by an endpoints service. It follows the
// Google API error envelope: {"error": {"code", "message", "status", "errors"}}.
type Error struct {
	Code    int         `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Status  string      `json:"status,omitempty"`
	Errors  []ErrorItem `json:"errors,omitempty"`
}

// ErrorItem is one entry of Error.Errors.
type ErrorItem struct {
	Domain  string `json:"domain,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("endpoints: ")
	if e.Code != 0 {
		fmt.Fprintf(&b, "%d ", e.Code)
	}
	if e.Status != "" {
		fmt.Fprintf(&b, "%s ", e.Status)
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else if e.Code != 0 {
		b.WriteString(strings.ToLower(http.StatusText(e.Code)))
	} else {
		b.WriteString("remote call failed")
	}
	return strings.TrimSpace(b.String())
}

// NewError builds an Error carrying an HTTP-style code and its canonical status.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message, Status: StatusForCode(code)}
}

// NotFound reports a missing record.
func NotFound(id any) *Error {
	return NewError(http.StatusNotFound, fmt.Sprintf("record %v not found", id))
}

// Conflict reports an identity collision on insert.
func Conflict(id any) *Error {
	return NewError(http.StatusConflict, fmt.Sprintf("record %v already exists", id))
}

// BadRequest reports malformed call arguments.
func BadRequest(message string) *Error {
	return NewError(http.StatusBadRequest, message)
}

// Internal reports a backend failure.
func Internal(err error) *Error {
	return NewError(http.StatusInternalServerError, err.Error())
}

// StatusForCode maps an HTTP code to the canonical Google API status name.
func StatusForCode(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "ALREADY_EXISTS"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusNotImplemented:
		return "UNIMPLEMENTED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	case 0:
		return ""
	default:
		if code >= 500 {
			return "INTERNAL"
		}
		return "UNKNOWN"
	}
}
