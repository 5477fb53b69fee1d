package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes every event to one topic, keyed by channel so that
// events of one auction keep their order within a partition.
type KafkaPublisher struct {
	w     *kafka.Writer
	codec Codec
}

// NewKafkaPublisher creates a writer tuned for low latency:
// events are fire-and-forget, so a single leader ack is enough.
func NewKafkaPublisher(brokers []string, topic string, codec Codec) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 10 * time.Millisecond,
		},
		codec: codec,
	}
}

// Close releases writer resources.
func (p *KafkaPublisher) Close() error { return p.w.Close() }

func (p *KafkaPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	b, err := p.codec.Marshal(Envelope{Channel: channel, Event: event, Payload: payload, PublishedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("kafka publish %s/%s: %w", channel, event, err)
	}
	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(channel),
		Value: b,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
			{Key: "content-type", Value: []byte(p.codec.ContentType())},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka publish %s/%s: %w", channel, event, err)
	}
	return nil
}
