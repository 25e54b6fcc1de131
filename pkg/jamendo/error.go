package jamendo

import (
	"errors"
	"fmt"
)

// Error represents a Jamendo API error.
type Error struct {
	// Code is the Jamendo status code (0 means success).
	Code int `json:"code"`

	// Message is the error message.
	Message string `json:"error_message"`

	// HTTPStatus is the HTTP status code.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jamendo: %s (code=%d, http=%d)", e.Message, e.Code, e.HTTPStatus)
}

// IsRateLimit returns true if this is a rate limit error.
func (e *Error) IsRateLimit() bool {
	return e.HTTPStatus == 429
}

// IsInvalidClientID returns true if the client ID was rejected.
func (e *Error) IsInvalidClientID() bool {
	return e.Code == 5 || e.HTTPStatus == 401
}

// IsServerError returns true if this is a server-side error.
func (e *Error) IsServerError() bool {
	return e.HTTPStatus >= 500
}

// Retryable returns true if the request can be retried.
func (e *Error) Retryable() bool {
	return e.IsRateLimit() || e.IsServerError()
}

// AsError extracts *Error from an error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
