package statechannel

import (
	"context"
	"sync"
)

type watch struct {
	filter  string
	handler Handler
}

// replica is the local last-value cache shared by the MQTT client and the
// in-memory client. Every inbound message lands here before any watcher
// runs, so synchronous reads always see at least as much as callbacks do.
type replica struct {
	mu      sync.RWMutex
	values  map[string][]byte
	waiters map[string][]chan []byte
	watches []watch
}

func newReplica() *replica {
	return &replica{
		values:  make(map[string][]byte),
		waiters: make(map[string][]chan []byte),
	}
}

func (r *replica) watch(filter string, h Handler) {
	r.mu.Lock()
	r.watches = append(r.watches, watch{filter: filter, handler: h})
	r.mu.Unlock()
}

func (r *replica) value(topic string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[topic]
	return v, ok
}

func (r *replica) snapshot() map[string][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]byte, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// deliver records the message, wakes waiters on its topic and invokes
// matching watch handlers. Handlers run outside the lock.
func (r *replica) deliver(msg Message) {
	r.mu.Lock()
	r.values[msg.Topic] = msg.Payload
	waiting := r.waiters[msg.Topic]
	delete(r.waiters, msg.Topic)
	handlers := make([]Handler, 0, len(r.watches))
	for _, w := range r.watches {
		if Matches(w.filter, msg.Topic) {
			handlers = append(handlers, w.handler)
		}
	}
	r.mu.Unlock()

	for _, ch := range waiting {
		ch <- msg.Payload
	}
	for _, h := range handlers {
		h(msg)
	}
}

func (r *replica) waitForValue(ctx context.Context, topic string) ([]byte, error) {
	r.mu.Lock()
	if v, ok := r.values[topic]; ok {
		r.mu.Unlock()
		return v, nil
	}
	ch := make(chan []byte, 1)
	r.waiters[topic] = append(r.waiters[topic], ch)
	r.mu.Unlock()

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		r.dropWaiter(topic, ch)
		return nil, ctx.Err()
	}
}

func (r *replica) dropWaiter(topic string, ch chan []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	waiting := r.waiters[topic]
	for i, c := range waiting {
		if c == ch {
			r.waiters[topic] = append(waiting[:i], waiting[i+1:]...)
			return
		}
	}
}
