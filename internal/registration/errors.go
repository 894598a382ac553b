// internal/registration/errors.go
package registration

import (
	"errors"
	"net/http"
)

// Code is a stable, machine-readable admission failure code. Callers branch
// on codes rather than message text.
type Code string

const (
	CodeEventNotFound        Code = "EVENT_NOT_FOUND"
	CodeEventInactive        Code = "EVENT_INACTIVE"
	CodeEventInPast          Code = "EVENT_IN_PAST"
	CodeAlreadyRegistered    Code = "ALREADY_REGISTERED"
	CodeEventFull            Code = "EVENT_FULL"
	CodeRegistrationNotFound Code = "REGISTRATION_NOT_FOUND"
	CodeEventAlreadyStarted  Code = "EVENT_ALREADY_STARTED"
	CodeEventNotConcluded    Code = "EVENT_NOT_CONCLUDED"
	CodeInternal             Code = "INTERNAL"
)

// Error is a domain error carrying a stable code.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// E constructs a coded domain error.
func E(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf extracts the domain code from err, or CodeInternal for any error
// that is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HTTPStatus maps a failure code to an HTTP status for the handler layer.
func HTTPStatus(code Code) int {
	switch code {
	case CodeEventNotFound, CodeRegistrationNotFound:
		return http.StatusNotFound
	case CodeEventInactive, CodeEventInPast, CodeEventAlreadyStarted, CodeEventNotConcluded:
		return http.StatusBadRequest
	case CodeAlreadyRegistered, CodeEventFull:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
