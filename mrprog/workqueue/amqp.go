package workqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

// Config holds the AMQP connection parameters.
type Config struct {
	Host     string
	Username string
	Password string
}

// AMQP is the production work queue client backed by RabbitMQ. RabbitMQ
// priority queues dequeue highest priority first and preserve FIFO order
// within a priority level, which is the ordering contract Client requires.
type AMQP struct {
	cfg Config

	// mu guards the session fields. Connect and the consumer's redial
	// replace them while command handlers publish concurrently.
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ Client = (*AMQP)(nil)

func NewAMQP(cfg Config) *AMQP {
	return &AMQP{cfg: cfg}
}

func (a *AMQP) url() string {
	return fmt.Sprintf("amqp://%s:%s@%s/", a.cfg.Username, a.cfg.Password, a.cfg.Host)
}

func (a *AMQP) session() (*amqp.Connection, *amqp.Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn, a.ch
}

func (a *AMQP) setSession(conn *amqp.Connection, ch *amqp.Channel) {
	a.mu.Lock()
	a.conn = conn
	a.ch = ch
	a.mu.Unlock()
}

func (a *AMQP) Connect(_ context.Context) error {
	conn, err := amqp.Dial(a.url())
	if err != nil {
		return fmt.Errorf("failed to connect to work queue broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	a.setSession(conn, ch)
	return nil
}

func (a *AMQP) Close(_ context.Context) error {
	conn, _ := a.session()
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close work queue connection: %w", err)
	}
	return nil
}

func (a *AMQP) Declare(_ context.Context) error {
	_, ch := a.session()
	return a.declareOn(ch)
}

func (a *AMQP) declareOn(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	for _, platform := range trade.Platforms() {
		for _, game := range trade.SupportedGames[platform] {
			name := trade.QueueName(platform, game)
			if _, err := ch.QueueDeclare(name, true, false, false, false, amqp.Table{
				"x-max-priority": int32(MaxPriority),
			}); err != nil {
				return fmt.Errorf("failed to declare queue %s: %w", name, err)
			}
			if err := ch.QueueBind(name, trade.RoutingKey(platform, game), ExchangeName, false, nil); err != nil {
				return fmt.Errorf("failed to bind queue %s: %w", name, err)
			}
		}
	}

	if _, err := ch.QueueDeclare(NotificationQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare notification queue: %w", err)
	}
	if err := ch.QueueBind(NotificationQueueName, NotificationQueueName, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind notification queue: %w", err)
	}
	return nil
}

func (a *AMQP) Publish(ctx context.Context, platform trade.Platform, game int, body []byte, priority uint8, correlationID, replyTo string) error {
	_, ch := a.session()
	err := ch.PublishWithContext(ctx, ExchangeName, trade.RoutingKey(platform, game), false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Priority:      priority,
		CorrelationId: correlationID,
		ReplyTo:       replyTo,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish trade request: %w", err)
	}
	return nil
}

func (a *AMQP) Purge(_ context.Context, platform trade.Platform, game int) error {
	_, ch := a.session()
	if _, err := ch.QueuePurge(trade.QueueName(platform, game), false); err != nil {
		return fmt.Errorf("failed to purge queue: %w", err)
	}
	return nil
}

// Drain fetches every queued message without auto-ack on a throwaway
// channel. Removed entries are acked off; everything else stays unacked
// and returns to its queue when the channel closes. Messages held unacked
// are not handed out again on the same channel, so the loop terminates
// once Get reports the queue empty.
func (a *AMQP) Drain(_ context.Context, remove func(Delivery) bool) ([]Delivery, int, error) {
	conn, _ := a.session()
	ch, err := conn.Channel()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open drain channel: %w", err)
	}
	defer ch.Close()

	var kept []Delivery
	removed := 0

	for _, platform := range trade.Platforms() {
		for _, game := range trade.SupportedGames[platform] {
			name := trade.QueueName(platform, game)
			for {
				msg, ok, err := ch.Get(name, false)
				if err != nil {
					return nil, 0, fmt.Errorf("failed to get from %s: %w", name, err)
				}
				if !ok {
					break
				}
				d := Delivery{
					Body:          msg.Body,
					CorrelationID: msg.CorrelationId,
					ReplyTo:       msg.ReplyTo,
					Priority:      msg.Priority,
				}
				if remove(d) {
					if err := msg.Ack(false); err != nil {
						return nil, 0, fmt.Errorf("failed to ack removed message: %w", err)
					}
					removed++
				} else {
					kept = append(kept, d)
				}
			}
		}
	}
	return kept, removed, nil
}

func (a *AMQP) Consume(ctx context.Context, h Handler) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.redial(); err != nil {
			slog.Warn("Work queue redial failed",
				slog.String("type", "workqueue"),
				slog.Any("error", err),
				slog.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		_, ch := a.session()
		deliveries, err := ch.Consume(NotificationQueueName, "", false, false, false, false, nil)
		if err != nil {
			slog.Warn("Failed to start notification consumer",
				slog.String("type", "workqueue"),
				slog.Any("error", err))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			continue
		}
		backoff = time.Second

		if err := a.consumeLoop(ctx, deliveries, h); err != nil {
			return err
		}
		// Channel closed underneath us; loop around and redial.
	}
}

func (a *AMQP) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return nil
			}
			h(Delivery{
				Body:          msg.Body,
				CorrelationID: msg.CorrelationId,
				ReplyTo:       msg.ReplyTo,
				Priority:      msg.Priority,
			})
			// Ack after effects are applied locally.
			if err := msg.Ack(false); err != nil {
				slog.Warn("Failed to ack notification",
					slog.String("type", "workqueue"),
					slog.Any("error", err))
			}
		}
	}
}

// redial builds a fresh session off to the side and only installs it once
// the topology is declared, so concurrent publishers never observe a
// half-initialized channel.
func (a *AMQP) redial() error {
	conn, ch := a.session()
	if conn != nil && !conn.IsClosed() && ch != nil && !ch.IsClosed() {
		return nil
	}
	if conn != nil {
		conn.Close()
	}

	conn, err := amqp.Dial(a.url())
	if err != nil {
		return fmt.Errorf("failed to connect to work queue broker: %w", err)
	}
	ch, err = conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := a.declareOn(ch); err != nil {
		conn.Close()
		return err
	}
	a.setSession(conn, ch)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
