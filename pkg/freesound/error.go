package freesound

import (
	"errors"
	"fmt"
)

// Error represents a Freesound API error.
type Error struct {
	// Detail is the error message from the API.
	Detail string `json:"detail"`

	// HTTPStatus is the HTTP status code.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("freesound: %s (http=%d)", e.Detail, e.HTTPStatus)
}

// IsRateLimit returns true if this is a rate limit error.
func (e *Error) IsRateLimit() bool {
	return e.HTTPStatus == 429
}

// IsInvalidToken returns true if the API token was rejected.
func (e *Error) IsInvalidToken() bool {
	return e.HTTPStatus == 401
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
