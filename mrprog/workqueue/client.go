// Package workqueue wraps the durable priority work queues that carry
// trade requests to workers, plus the shared notification queue workers
// reply on. One queue exists per (platform, game) pair, bound to a topic
// exchange by "requests.<platform>.bn<game>".
package workqueue

import (
	"context"

	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

const (
	// ExchangeName is the durable topic exchange all queues bind to.
	ExchangeName = "trade_requests"
	// NotificationQueueName is the shared queue workers publish status
	// updates to, keyed by correlation id.
	NotificationQueueName = "trade_status_update"
	// MaxPriority bounds the priority range of every task queue.
	MaxPriority = 100
)

// Delivery is one message taken off a queue.
type Delivery struct {
	Body          []byte
	CorrelationID string
	ReplyTo       string
	Priority      uint8
}

// Handler consumes one notification. Acknowledgement happens after the
// handler returns, so effects applied inside it are at-least-once: a crash
// mid-handling causes redelivery rather than loss.
type Handler func(Delivery)

// Client is the work queue contract the broker depends on. Dequeue order
// is highest priority first, FIFO within equal priority.
type Client interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// Declare creates the exchange, every per-game task queue and the
	// notification queue. Idempotent.
	Declare(ctx context.Context) error

	// Publish enqueues body durably on the (platform, game) task queue.
	Publish(ctx context.Context, platform trade.Platform, game int, body []byte, priority uint8, correlationID, replyTo string) error

	// Purge empties the (platform, game) task queue without processing
	// its messages.
	Purge(ctx context.Context, platform trade.Platform, game int) error

	// Drain inspects every message currently sitting in the task queues.
	// Messages for which remove returns true are permanently taken off
	// the queue; all others are put back untouched. Returns the kept
	// entries and the number removed.
	Drain(ctx context.Context, remove func(Delivery) bool) (kept []Delivery, removed int, err error)

	// Consume runs the notification loop until ctx is cancelled,
	// redialing with backoff on transport faults.
	Consume(ctx context.Context, h Handler) error
}
