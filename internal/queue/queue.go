package queue

import (
	"context"
	"fmt"
)

// Publisher publishes broadcast jobs.
type Publisher interface {
	Publish(ctx context.Context, msg BroadcastMessage) error
	Close() error
}

// MessageHandler handles a consumed broadcast job. A returned error requeues
// the delivery unless it wraps ErrPermanent.
type MessageHandler func(ctx context.Context, msg BroadcastMessage) error

// Consumer consumes broadcast jobs.
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}

const (
	BroadcastQueue = "broadcasts"
	routingKey     = BroadcastQueue
)

// DLQName returns the dead-letter queue for a work queue, e.g. dlq.broadcasts.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}
