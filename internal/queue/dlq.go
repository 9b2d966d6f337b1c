package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

const (
	DeadLetterExchange  = "catalog.events.dlx"
	DeadLetterQueueName = "catalog.review_events.dlq"
	MaxDeliveryAttempts = 5

	retryCountHeader    = "x-retry-count"
	failureReasonHeader = "x-failure-reason"
	failedAtHeader      = "x-failed-at"
)

// declareDeadLetter sets up the dead letter exchange and queue and returns
// the arguments that route rejected review events into them.
func declareDeadLetter(ch *amqp.Channel) (amqp.Table, error) {
	err := ch.ExchangeDeclare(
		DeadLetterExchange,
		"fanout",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare DLQ: %w", err)
	}

	if err := ch.QueueBind(DeadLetterQueueName, "", DeadLetterExchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind DLQ: %w", err)
	}

	return amqp.Table{"x-dead-letter-exchange": DeadLetterExchange}, nil
}

func retryCount(msg amqp.Delivery) int {
	switch v := msg.Headers[retryCountHeader].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// retry republishes a delivery the handler failed on, or moves it to the dead
// letter queue once it has used up its attempts. The original is acked.
func (q *Queue) retry(ctx context.Context, msg amqp.Delivery, cause error) error {
	attempt := retryCount(msg) + 1

	pub := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  msg.ContentType,
		Type:         msg.Type,
		MessageId:    msg.MessageId,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
		Headers:      amqp.Table{retryCountHeader: int32(attempt)},
	}

	exchange, key := q.exchange, msg.RoutingKey
	if attempt >= MaxDeliveryAttempts {
		exchange, key = DeadLetterExchange, ""
		pub.Headers[failureReasonHeader] = cause.Error()
		pub.Headers[failedAtHeader] = time.Now().UTC().Format(time.RFC3339)
	}

	if err := q.channel.PublishWithContext(ctx, exchange, key, false, false, pub); err != nil {
		// Leave it on the queue for the next consumer
		msg.Nack(false, true)
		return fmt.Errorf("failed to republish event: %w", err)
	}
	msg.Ack(false)
	return nil
}

// ConsumeDeadLetters delivers dead-lettered review events with the recorded
// failure reason until ctx is done.
func (q *Queue) ConsumeDeadLetters(ctx context.Context, handler func(models.SubmissionEvent, string) error) error {
	msgs, err := q.channel.Consume(
		DeadLetterQueueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register DLQ consumer: %w", err)
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
				// Unparseable bodies are dropped
				msg.Nack(false, false)
				continue
			}

			reason, _ := msg.Headers[failureReasonHeader].(string)
			if reason == "" {
				reason = "rejected"
			}

			if err := handler(event, reason); err != nil {
				msg.Nack(false, true)
			} else {
				msg.Ack(false)
			}
		}
	}
}
