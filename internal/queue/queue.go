package queue

import (
	"context"
	"fmt"
)

const (
	// SettlementQueue carries gateway settlement events consumed by the
	// status tracker.
	SettlementQueue = "settlements"
)

// Publisher publishes settlement messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg SettlementMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg SettlementMessage) error

// Consumer consumes settlement messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// DLQName returns the dead-letter queue name, e.g. dlq.settlements.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}
