package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Config describes the work queue and its dead-letter sink.
type Config struct {
	URL             string
	Queue           string
	DeadLetterQueue string
	MaxDeliveries   int
	LeaseTimeout    time.Duration
	ConsumerTag     string
}

// Delivery is one message handed to a consumer. Exactly one of Ack, Retry or Reject must be called.
type Delivery struct {
	Body      []byte
	Attempt   int
	Timestamp time.Time
	Ack       func() error
	Retry     func() error
	Reject    func() error
}

// RabbitMQ publishes and consumes essay processing messages on a quorum queue.
// Redeliveries beyond MaxDeliveries are dead-lettered by the broker.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	logger  zerolog.Logger
}

// Dial connects to the broker and declares the queue topology.
func Dial(cfg Config, logger zerolog.Logger) (*RabbitMQ, error) {
	if cfg.URL == "" || cfg.Queue == "" {
		return nil, fmt.Errorf("queue url and name must be provided")
	}
	if cfg.DeadLetterQueue == "" {
		cfg.DeadLetterQueue = cfg.Queue + "-dlq"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	q := &RabbitMQ{
		conn:    conn,
		channel: channel,
		cfg:     cfg,
		logger:  logger.With().Str("component", "work_queue").Str("queue", cfg.Queue).Logger(),
	}

	if err := q.declare(); err != nil {
		_ = q.Close()
		return nil, err
	}

	return q, nil
}

func (q *RabbitMQ) declare() error {
	if _, err := q.channel.QueueDeclare(
		q.cfg.DeadLetterQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}

	if _, err := q.channel.QueueDeclare(
		q.cfg.Queue,
		true,
		false,
		false,
		false,
		QueueArguments(q.cfg),
	); err != nil {
		return fmt.Errorf("failed to declare work queue: %w", err)
	}

	return nil
}

// QueueArguments returns the declaration arguments enforcing bounded redelivery and the lease window.
func QueueArguments(cfg Config) amqp.Table {
	args := amqp.Table{
		"x-queue-type":              "quorum",
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DeadLetterQueue,
	}
	if cfg.MaxDeliveries > 0 {
		args["x-delivery-limit"] = int64(cfg.MaxDeliveries)
	}
	if cfg.LeaseTimeout > 0 {
		args["x-consumer-timeout"] = cfg.LeaseTimeout.Milliseconds()
	}
	return args
}

// Publish enqueues a persistent JSON message on the work queue.
func (q *RabbitMQ) Publish(ctx context.Context, body []byte) error {
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return q.channel.PublishWithContext(
		publishCtx,
		"",          // default exchange
		q.cfg.Queue, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// Consume starts delivering messages one at a time until ctx is cancelled.
func (q *RabbitMQ) Consume(ctx context.Context) (<-chan Delivery, error) {
	if err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	); err != nil {
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	msgs, err := q.channel.Consume(
		q.cfg.Queue,
		q.cfg.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}

	output := make(chan Delivery)

	go func() {
		defer close(output)

		for {
			select {
			case <-ctx.Done():
				q.logger.Info().Msg("stopping consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					q.logger.Warn().Msg("delivery channel closed")
					return
				}

				delivery := toDelivery(msg)
				select {
				case output <- delivery:
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					return
				}
			}
		}
	}()

	q.logger.Info().Str("consumer_tag", q.cfg.ConsumerTag).Msg("consumer started")

	return output, nil
}

func toDelivery(msg amqp.Delivery) Delivery {
	return Delivery{
		Body:      msg.Body,
		Attempt:   DeliveryAttempt(msg.Headers, msg.Redelivered),
		Timestamp: msg.Timestamp,
		Ack:       func() error { return msg.Ack(false) },
		Retry:     func() error { return msg.Nack(false, true) },
		Reject:    func() error { return msg.Nack(false, false) },
	}
}

// DeliveryAttempt derives the 1-based attempt number from the quorum queue delivery counter.
func DeliveryAttempt(headers amqp.Table, redelivered bool) int {
	if value, ok := headers["x-delivery-count"]; ok {
		switch count := value.(type) {
		case int64:
			return int(count) + 1
		case int32:
			return int(count) + 1
		case int:
			return count + 1
		}
	}
	if redelivered {
		return 2
	}
	return 1
}

// Close cancels the consumer and releases the connection.
func (q *RabbitMQ) Close() error {
	if q.channel != nil {
		if q.cfg.ConsumerTag != "" {
			if err := q.channel.Cancel(q.cfg.ConsumerTag, false); err != nil {
				q.logger.Warn().Err(err).Msg("failed to cancel consumer")
			}
		}
		_ = q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
