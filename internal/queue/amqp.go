package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-booking/internal/notify"
)

// AMQPPublisher publishes events to a durable RabbitMQ queue. It dials per
// publish; notifications are rare enough that a pooled connection is not
// worth the reconnect bookkeeping.
type AMQPPublisher struct {
	url   string
	queue string
	log   *logrus.Logger
}

func NewAMQPPublisher(url, queue string, log *logrus.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, log: log}
}

func publishing(body []byte, now time.Time) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    now.UTC(),
		Body:         body,
	}
}

func declare(ch *amqp.Channel, queue string) error {
	// name, durable, autoDelete, exclusive, noWait, args
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	return err
}

// Dispatch publishes ev. It implements notify.Dispatcher.
func (p *AMQPPublisher) Dispatch(ctx context.Context, ev notify.Event) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declare(ch, p.queue); err != nil {
		p.log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, publishing(body, time.Now())); err != nil {
		p.log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

// AMQPConsumer drains the notification queue into a delivery dispatcher.
type AMQPConsumer struct {
	url      string
	queue    string
	delivery notify.Dispatcher
	log      *logrus.Logger
}

func NewAMQPConsumer(url, queue string, delivery notify.Dispatcher, log *logrus.Logger) *AMQPConsumer {
	return &AMQPConsumer{url: url, queue: queue, delivery: delivery, log: log}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).WithField("retry_in", backoff.String()).Warn("notify-consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.WithError(err).Warn("notify-consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AMQPConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("notify-consumer: set QoS failed")
	}
	if err := declare(ch, c.queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handle(ctx, d.Body, c.delivery); err != nil {
			c.log.WithError(err).WithField("message_id", d.MessageId).Warn("notify-consumer: handle message failed")
			_ = d.Nack(false, false) // drop, requeueing would spin
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
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
