package statechannel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		filter string
		topic  string
		want   bool
	}{
		{"worker/#", "worker/switch-1/available", true},
		{"worker/#", "worker/switch-1", true},
		{"worker/#", "bot/available", false},
		{"#", "anything/at/all", true},
		{"worker/+/available", "worker/switch-1/available", true},
		{"worker/+/available", "worker/switch-1/enabled", false},
		{"worker/+/available", "worker/switch-1/nested/available", false},
		{"bot/available", "bot/available", true},
		{"bot/available", "bot/available/extra", false},
		{"bot/available/extra", "bot/available", false},
	}
	for _, tt := range tests {
		t.Run(tt.filter+" vs "+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.filter, tt.topic))
		})
	}
}

func TestWaitForValueReturnsRetainedImmediately(t *testing.T) {
	m := NewMemory()
	m.Deliver(TopicBotTradeID, []byte("7"))

	v, err := m.WaitForValue(context.Background(), TopicBotTradeID)
	require.NoError(t, err)
	assert.Equal(t, "7", string(v))
}

func TestWaitForValueBlocksUntilDelivery(t *testing.T) {
	m := NewMemory()

	got := make(chan []byte, 1)
	go func() {
		v, err := m.WaitForValue(context.Background(), TopicBotConfig)
		if err == nil {
			got <- v
		}
	}()

	// The waiter must be registered before the delivery lands.
	time.Sleep(10 * time.Millisecond)
	m.Deliver(TopicBotConfig, []byte(`{}`))

	select {
	case v := <-got:
		assert.Equal(t, `{}`, string(v))
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestWaitForValueHonorsContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.WaitForValue(ctx, "never/published")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWatchReceivesOnlyMatchingTopics(t *testing.T) {
	m := NewMemory()

	var worker []string
	m.Watch(WorkerFilter, func(msg Message) {
		worker = append(worker, msg.Topic)
	})

	m.Deliver("worker/switch-1/available", []byte("1"))
	m.Deliver(TopicBotAvailable, []byte("1"))
	m.Deliver("worker/steam-2/hostname", []byte("host"))

	assert.Equal(t, []string{"worker/switch-1/available", "worker/steam-2/hostname"}, worker)
}

func TestLaterDeliveryOverwritesValue(t *testing.T) {
	m := NewMemory()
	m.Deliver(TopicBotEnabled, []byte("1"))
	m.Deliver(TopicBotEnabled, []byte("0"))

	v, ok := m.Value(TopicBotEnabled)
	require.True(t, ok)
	assert.Equal(t, "0", string(v))

	snap := m.Snapshot()
	assert.Equal(t, []byte("0"), snap[TopicBotEnabled])
}
