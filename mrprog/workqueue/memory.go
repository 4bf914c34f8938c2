package workqueue

import (
	"context"
	"sync"

	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

type memEntry struct {
	d   Delivery
	seq int
}

// Memory is an in-process work queue with the same ordering contract as
// the RabbitMQ client: highest priority first, FIFO within a priority.
// Tests use it to drive the broker without a running broker daemon; Inject
// plays the worker role on the notification queue and PopNext plays the
// worker role on a task queue.
type Memory struct {
	mu            sync.Mutex
	queues        map[string][]memEntry
	seq           int
	notifications chan Delivery
}

var _ Client = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		queues:        make(map[string][]memEntry),
		notifications: make(chan Delivery, 64),
	}
}

func (m *Memory) Connect(_ context.Context) error { return nil }
func (m *Memory) Close(_ context.Context) error   { return nil }

func (m *Memory) Declare(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, platform := range trade.Platforms() {
		for _, game := range trade.SupportedGames[platform] {
			name := trade.QueueName(platform, game)
			if _, ok := m.queues[name]; !ok {
				m.queues[name] = nil
			}
		}
	}
	return nil
}

func (m *Memory) Publish(_ context.Context, platform trade.Platform, game int, body []byte, priority uint8, correlationID, replyTo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := trade.QueueName(platform, game)
	m.seq++
	entry := memEntry{
		d: Delivery{
			Body:          body,
			CorrelationID: correlationID,
			ReplyTo:       replyTo,
			Priority:      priority,
		},
		seq: m.seq,
	}
	// Insert behind every entry of equal or higher priority.
	q := m.queues[name]
	pos := len(q)
	for i, e := range q {
		if entry.d.Priority > e.d.Priority {
			pos = i
			break
		}
	}
	q = append(q, memEntry{})
	copy(q[pos+1:], q[pos:])
	q[pos] = entry
	m.queues[name] = q
	return nil
}

func (m *Memory) Purge(_ context.Context, platform trade.Platform, game int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[trade.QueueName(platform, game)] = nil
	return nil
}

func (m *Memory) Drain(_ context.Context, remove func(Delivery) bool) ([]Delivery, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []Delivery
	removed := 0
	for name, q := range m.queues {
		var remaining []memEntry
		for _, e := range q {
			if remove(e.d) {
				removed++
			} else {
				kept = append(kept, e.d)
				remaining = append(remaining, e)
			}
		}
		m.queues[name] = remaining
	}
	return kept, removed, nil
}

func (m *Memory) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-m.notifications:
			h(d)
		}
	}
}

// Inject places a status update on the notification queue, as a worker
// would.
func (m *Memory) Inject(d Delivery) {
	m.notifications <- d
}

// PopNext dequeues the next task for a (platform, game) pair, as a worker
// would. Reports false when the queue is empty.
func (m *Memory) PopNext(platform trade.Platform, game int) (Delivery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := trade.QueueName(platform, game)
	q := m.queues[name]
	if len(q) == 0 {
		return Delivery{}, false
	}
	entry := q[0]
	m.queues[name] = q[1:]
	return entry.d, true
}

// Len reports how many messages sit in the (platform, game) queue.
func (m *Memory) Len(platform trade.Platform, game int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[trade.QueueName(platform, game)])
}
