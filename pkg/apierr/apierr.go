// Package apierr defines the typed error every external API client returns
// for non-2xx responses, so callers classify failures by status code instead
// of matching message strings.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed call to an external API.
type Error struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: api error: status %d: %s", e.Service, e.StatusCode, e.Body)
}

// New constructs an Error for the given service and response.
func New(service string, statusCode int, body string) *Error {
	return &Error{Service: service, StatusCode: statusCode, Body: body}
}

// IsStatus reports whether err chains to an Error with the given status code.
func IsStatus(err error, statusCode int) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.StatusCode == statusCode
}

// IsRateLimit reports whether err chains to a 429 response. Rate limits are
// the one error class retried at the orchestrator level.
func IsRateLimit(err error) bool {
	return IsStatus(err, http.StatusTooManyRequests)
}
