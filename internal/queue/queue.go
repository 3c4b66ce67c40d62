package queue

import (
	"context"
	"fmt"
	"strings"
)

// Publisher publishes change events to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, event ChangeEvent) error
	Close() error
}

// MessageHandler handles a consumed change event.
type MessageHandler func(ctx context.Context, event ChangeEvent) error

// Consumer consumes change events from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// DefaultChangeQueue carries reservation change events.
	DefaultChangeQueue = "reservation.changes"

	// queueMaxPriority is the RabbitMQ x-max-priority value for change queues.
	queueMaxPriority int32 = 2
)

// NormalizeQueueName lowercases and trims a queue name, falling back to the default.
func NormalizeQueueName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultChangeQueue
	}
	return name
}

// DLQName returns the dead-letter queue for a change queue, e.g. dlq.reservation.changes.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", NormalizeQueueName(queue))
}

// PriorityValue maps an event origin to a RabbitMQ message priority.
// Store changes overtake sweep re-evaluations.
func PriorityValue(origin Origin) uint8 {
	switch origin {
	case OriginStore, "":
		return 2
	case OriginSweep:
		return 1
	default:
		return 0
	}
}
