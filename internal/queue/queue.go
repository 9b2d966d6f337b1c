package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/config"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

const (
	ReviewQueueName   = "catalog.review_events"
	ReviewBindingKey  = "submission.#"
	SubtitleBindKey   = "subtitle.#"
	DefaultExchange   = "catalog.events"
	exchangeKindTopic = "topic"
)

// Channel is the subset of *amqp.Channel used by Queue
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// Queue publishes review events to a topic exchange
type Queue struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
}

// URL builds the AMQP connection string for cfg
func URL(cfg config.QueueConfig) string {
	vhost := cfg.Vhost
	if vhost == "" {
		vhost = "/"
	}
	return amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		Password: cfg.Password,
		Vhost:    vhost,
	}.String()
}

// New creates a new queue client
func New(cfg config.QueueConfig) (*Queue, error) {
	conn, err := amqp.Dial(URL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}

	// Declare exchange
	err = channel.ExchangeDeclare(
		exchange,
		exchangeKindTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queueArgs, err := declareDeadLetter(channel)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		ReviewQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		queueArgs,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	for _, key := range []string{ReviewBindingKey, SubtitleBindKey} {
		if err := channel.QueueBind(ReviewQueueName, key, exchange, false, nil); err != nil {
			channel.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue: %w", err)
		}
	}

	return &Queue{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
	}, nil
}

// NewWithChannel wraps an already opened channel
func NewWithChannel(channel Channel, exchange string) *Queue {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Queue{channel: channel, exchange: exchange}
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// Name identifies this notifier in logs and metrics
func (q *Queue) Name() string {
	return "amqp"
}

// RoutingKey returns submission.<type>.<status>, or the event name for non-review events
func RoutingKey(event models.SubmissionEvent) string {
	if event.Event == models.WebhookEventSubtitlePromoted {
		return event.Event
	}
	return fmt.Sprintf("submission.%s.%s", event.SubmissionType, event.Status)
}

// Notify publishes a review event
func (q *Queue) Notify(ctx context.Context, event models.SubmissionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	timestamp := event.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	err = q.channel.PublishWithContext(ctx,
		q.exchange,
		RoutingKey(event),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Type:         event.Event,
			MessageId:    event.SubmissionID,
			Body:         body,
			Timestamp:    timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// ConsumeEvents delivers review events to handler until ctx is done. A failed
// event is redelivered up to MaxDeliveryAttempts times, then dead-lettered.
func (q *Queue) ConsumeEvents(ctx context.Context, handler func(models.SubmissionEvent) error) error {
	if err := q.channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		ReviewQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			var event models.SubmissionEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				// Dead-lettered by the queue arguments
				msg.Nack(false, false)
				continue
			}

			if err := handler(event); err != nil {
				if rerr := q.retry(ctx, msg, err); rerr != nil {
					return rerr
				}
				continue
			}
			msg.Ack(false)
		}
	}
}
