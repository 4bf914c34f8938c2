// Package statechannel wraps the MQTT session used as a retained key/value
// state channel: worker liveness and capability announcements, feature
// toggles, the shared trade counter and the bot config blob all live here
// as retained topic values.
package statechannel

import (
	"context"
	"strings"
)

// Topics owned by the bot side of the channel. Worker topics follow the
// worker/<id>/<field> pattern and are only ever read here.
const (
	TopicBotAvailable = "bot/available"
	TopicBotHostname  = "bot/hostname"
	TopicBotAddress   = "bot/address"
	TopicBotEnabled   = "bot/enabled"
	TopicBotTradeID   = "bot/trade_id"
	TopicBotConfig    = "bot/config"

	// WorkerFilter matches every worker status topic.
	WorkerFilter = "worker/#"
)

// Message is one delivery from the channel.
type Message struct {
	Topic   string
	Payload []byte
}

// Handler receives matching messages as they arrive. Handlers run on the
// delivery goroutine and must not block.
type Handler func(Message)

// Client is the state channel contract the broker and registry depend on.
// The production implementation speaks MQTT; tests use Memory.
type Client interface {
	// Connect establishes the session. The session carries a last-will
	// that retains "0" on bot/available if it drops uncleanly, and every
	// (re)connect re-subscribes and re-announces this instance.
	Connect(ctx context.Context) error

	// Disconnect cleanly tears the session down.
	Disconnect(ctx context.Context) error

	// PublishRetained stores payload as the topic's durable last value,
	// delivered to all current and future subscribers until overwritten.
	PublishRetained(ctx context.Context, topic string, payload []byte) error

	// WaitForValue returns the topic's current value immediately if one
	// has been observed, otherwise blocks until the first delivery on the
	// topic or ctx expiry. Waiting never stalls other topic deliveries.
	WaitForValue(ctx context.Context, topic string) ([]byte, error)

	// Watch registers a handler for every message whose topic matches the
	// MQTT-style filter ("+" single level, "#" multi level).
	Watch(filter string, h Handler)

	// Value reads the last observed payload for a topic from the local
	// replica without blocking.
	Value(topic string) ([]byte, bool)

	// Snapshot returns a copy of the full local replica.
	Snapshot() map[string][]byte
}

// Matches reports whether an MQTT topic filter matches a concrete topic.
func Matches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, level := range f {
		if level == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if level != "+" && level != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}
