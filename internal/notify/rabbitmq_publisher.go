package notify

import (
	"context"
	"fmt"
	"time"

	"auction-house/utils"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes to a topic exchange with the channel name as
// routing key, so consumers can bind to "auction-*" or a single "user-<id>".
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	codec    Codec
}

func NewRabbitMQPublisher(url, exchange string, codec Codec) (*RabbitMQPublisher, error) {
	var conn *amqp.Connection
	var err error

	// RabbitMQ may still be starting when the service boots
	for i := 0; i < 5; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		utils.Warn("rabbitmq: connect failed, retrying", map[string]any{"attempt": i + 1, "error": err.Error()})
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQPublisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		codec:    codec,
	}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	now := time.Now().UTC()
	b, err := p.codec.Marshal(Envelope{Channel: channel, Event: event, Payload: payload, PublishedAt: now})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s/%s: %w", channel, event, err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		channel,    // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			MessageId:    utils.GenerateID(),
			Type:         event,
			ContentType:  p.codec.ContentType(),
			Timestamp:    now,
			Body:         b,
			DeliveryMode: amqp.Transient,
		})
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s/%s: %w", channel, event, err)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
