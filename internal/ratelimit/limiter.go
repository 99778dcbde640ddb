package ratelimit

import "context"

// Limiter gates outbound sends. Acquire blocks until the caller may send.
type Limiter interface {
	Acquire(ctx context.Context) error
}
