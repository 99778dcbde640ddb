package provider

import "time"

// Status is the closed set of send outcomes reported by the Bot API.
type Status int

const (
	StatusOK Status = iota
	StatusForbidden
	StatusThrottled
	StatusBadRequest
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusForbidden:
		return "forbidden"
	case StatusThrottled:
		return "throttled"
	case StatusBadRequest:
		return "bad_request"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the classified outcome of one send call. RetryAfter is set for
// StatusThrottled only; Err is nil for StatusOK.
type Result struct {
	Status     Status
	RetryAfter time.Duration
	Err        error
}

func OK() Result {
	return Result{Status: StatusOK}
}

func Forbidden(err error) Result {
	return Result{Status: StatusForbidden, Err: err}
}

func Throttled(retryAfter time.Duration, err error) Result {
	return Result{Status: StatusThrottled, RetryAfter: retryAfter, Err: err}
}

func BadRequest(err error) Result {
	return Result{Status: StatusBadRequest, Err: err}
}

func Failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}
