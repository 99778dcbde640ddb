package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIError is a Bot API call that reached Telegram and came back with ok=false,
// or a transport failure wrapped in Cause.
type APIError struct {
	StatusCode  int
	ErrorCode   int
	Description string
	RetryAfter  time.Duration
	Cause       error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "telegram api error")

	if code := e.code(); code > 0 {
		parts = append(parts, fmt.Sprintf("code=%d", code))
	}
	if desc := strings.TrimSpace(e.Description); desc != "" {
		parts = append(parts, desc)
	}
	if e.RetryAfter > 0 {
		parts = append(parts, fmt.Sprintf("retry after %s", e.RetryAfter))
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// code prefers Telegram's error_code and falls back to the HTTP status.
func (e *APIError) code() int {
	if e.ErrorCode > 0 {
		return e.ErrorCode
	}
	return e.StatusCode
}

// Classify folds a send error into a Result. Only Telegram's own error codes
// are mapped to specific statuses; everything else is StatusFailed.
func Classify(err error) Result {
	if err == nil {
		return OK()
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return Failed(err)
	}

	switch apiErr.code() {
	case http.StatusForbidden:
		return Forbidden(err)
	case http.StatusTooManyRequests:
		return Throttled(apiErr.RetryAfter, err)
	case http.StatusBadRequest:
		return BadRequest(err)
	default:
		return Failed(err)
	}
}
