package queue

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-booking/internal/notify"
)

// KafkaPublisher writes events to a topic keyed by booking id, so every
// event of one booking lands on the same partition in order.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func kafkaMessage(ev notify.Event) (kafka.Message, error) {
	body, err := encode(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.BookingCode),
		Value: body,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(contentType)},
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}, nil
}

// Dispatch implements notify.Dispatcher.
func (p *KafkaPublisher) Dispatch(ctx context.Context, ev notify.Event) error {
	msg, err := kafkaMessage(ev)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// KafkaConsumer reads the topic as part of a consumer group.
type KafkaConsumer struct {
	r        *kafka.Reader
	delivery notify.Dispatcher
	log      *logrus.Logger
}

func NewKafkaConsumer(brokers []string, topic, group string, delivery notify.Dispatcher, log *logrus.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: group,
		}),
		delivery: delivery,
		log:      log,
	}
}

// Run processes messages until ctx is cancelled, then closes the reader.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.r.Close()
	for {
		msg, err := c.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.log.WithError(err).Warn("notify-consumer: read failed")
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}
		if err := handle(ctx, msg.Value, c.delivery); err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Warn("notify-consumer: handle message failed")
		}
	}
}
