package statechannel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config holds the MQTT session parameters.
type Config struct {
	Host     string
	Username string
	Password string
	// ClientID defaults to a digest of the hostname so restarts resume the
	// same session identity.
	ClientID string
}

// MQTT is the production state channel client. It keeps a full local
// replica of every retained topic by subscribing to "#" at QoS 1.
type MQTT struct {
	cfg     Config
	client  mqtt.Client
	replica *replica

	// OnConnect runs after every successful (re)connect, once the wildcard
	// subscription is re-established. The broker uses it to re-announce
	// its own liveness, hostname and address.
	OnConnect func()
}

var _ Client = (*MQTT)(nil)

// NewMQTT builds an MQTT state channel client. Connect must be called
// before any publish or read.
func NewMQTT(cfg Config) *MQTT {
	if cfg.ClientID == "" {
		host, _ := os.Hostname()
		sum := sha256.Sum256([]byte(host))
		cfg.ClientID = hex.EncodeToString(sum[:])
	}
	return &MQTT{
		cfg:     cfg,
		replica: newReplica(),
	}
}

func (m *MQTT) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:1883", m.cfg.Host)).
		SetClientID(m.cfg.ClientID).
		SetUsername(m.cfg.Username).
		SetPassword(m.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetWill(TopicBotAvailable, "0", 1, true).
		SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
			m.replica.deliver(Message{Topic: msg.Topic(), Payload: msg.Payload()})
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("State channel connection lost",
				slog.String("type", "statechannel"),
				slog.Any("error", err))
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			// nil handler routes matching messages to the default handler.
			c.Subscribe("#", 1, nil)
			slog.Info("State channel connected",
				slog.String("type", "statechannel"),
				slog.String("host", m.cfg.Host))
			if m.OnConnect != nil {
				m.OnConnect()
			}
		})

	m.client = mqtt.NewClient(opts)
	if err := m.wait(ctx, m.client.Connect()); err != nil {
		return fmt.Errorf("failed to connect to state channel: %w", err)
	}
	return nil
}

func (m *MQTT) Disconnect(_ context.Context) error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

func (m *MQTT) PublishRetained(ctx context.Context, topic string, payload []byte) error {
	if err := m.wait(ctx, m.client.Publish(topic, 1, true, payload)); err != nil {
		return fmt.Errorf("failed to publish retained %q: %w", topic, err)
	}
	return nil
}

func (m *MQTT) WaitForValue(ctx context.Context, topic string) ([]byte, error) {
	return m.replica.waitForValue(ctx, topic)
}

func (m *MQTT) Watch(filter string, h Handler) {
	m.replica.watch(filter, h)
}

func (m *MQTT) Value(topic string) ([]byte, bool) {
	return m.replica.value(topic)
}

func (m *MQTT) Snapshot() map[string][]byte {
	return m.replica.snapshot()
}

func (m *MQTT) wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
