package statechannel

import "context"

// Memory is an in-process state channel with retained semantics, used by
// tests and local development. Publishes are delivered synchronously.
type Memory struct {
	replica *replica

	// OnConnect mirrors the MQTT client's reconnect hook.
	OnConnect func()
}

var _ Client = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{replica: newReplica()}
}

func (m *Memory) Connect(_ context.Context) error {
	if m.OnConnect != nil {
		m.OnConnect()
	}
	return nil
}

func (m *Memory) Disconnect(_ context.Context) error { return nil }

func (m *Memory) PublishRetained(_ context.Context, topic string, payload []byte) error {
	m.replica.deliver(Message{Topic: topic, Payload: payload})
	return nil
}

// Deliver injects a message as if a remote publisher sent it.
func (m *Memory) Deliver(topic string, payload []byte) {
	m.replica.deliver(Message{Topic: topic, Payload: payload})
}

func (m *Memory) WaitForValue(ctx context.Context, topic string) ([]byte, error) {
	return m.replica.waitForValue(ctx, topic)
}

func (m *Memory) Watch(filter string, h Handler) {
	m.replica.watch(filter, h)
}

func (m *Memory) Value(topic string) ([]byte, bool) {
	return m.replica.value(topic)
}

func (m *Memory) Snapshot() map[string][]byte {
	return m.replica.snapshot()
}
