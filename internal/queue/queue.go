// Package queue provides the buffering layer between the relay handlers
// and the usage log store, with two interchangeable backends:
//
//   - Memory queue: channel-based, no persistence, zero external
//     dependencies. Suited to single-node deployments.
//   - Redis queue: list-based, survives restarts and supports several
//     worker processes draining the same queue.
//
// Both feed batch-oriented workers; items that exhaust their retries are
// parked in a dead letter queue for operator inspection.
package queue

import (
	"context"
	"time"
)

// Queue defines the interface for message queuing.
type Queue interface {
	// Enqueue adds an item to the queue.
	Enqueue(ctx context.Context, item any) error

	// Dequeue retrieves up to maxItems items, blocking until at least
	// one is available or the context is cancelled.
	Dequeue(ctx context.Context, maxItems int) ([]any, error)

	// DequeueWithTimeout retrieves up to maxItems items, returning an
	// empty slice if none arrive before the timeout.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]any, error)

	// Length returns the current queue length.
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully.
	Close() error
}

// DeadLetterQueue holds items that could not be processed.
type DeadLetterQueue interface {
	// Add parks a failed item together with its last error.
	Add(ctx context.Context, item any, err error) error

	// List retrieves up to maxItems parked items (0 = all).
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove removes a parked item by ID.
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue.
	Close() error
}

// DeadLetterItem is one parked item.
type DeadLetterItem struct {
	ID        string
	Item      any
	Error     string
	Timestamp time.Time
	Retries   int
}

// Config holds queue configuration.
type Config struct {
	// BatchSize is the maximum number of items a worker processes at once.
	BatchSize int

	// BatchTimeout is how long a worker waits before processing a
	// partial batch.
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts per item.
	MaxRetries int

	// RetryBackoff is the initial backoff duration, doubled per retry.
	RetryBackoff time.Duration

	// UseRedis selects the Redis backend over the in-memory one.
	UseRedis      bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// QueueName is the name/key for the queue.
	QueueName string
}

// DefaultConfig returns default queue configuration.
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}
