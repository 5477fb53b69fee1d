package notify

import (
	"context"
	"fmt"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// RedisPublisher publishes envelopes with Redis PUBLISH so other instances
// and websocket gateways can relay them to connected clients.
type RedisPublisher struct {
	rdb   *rd.Client
	codec Codec
}

func NewRedisPublisher(rdb *rd.Client, codec Codec) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, codec: codec}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel, event string, payload any) error {
	b, err := p.codec.Marshal(Envelope{Channel: channel, Event: event, Payload: payload, PublishedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("redis publish %s/%s: %w", channel, event, err)
	}
	if err := p.rdb.Publish(ctx, channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s/%s: %w", channel, event, err)
	}
	return nil
}
