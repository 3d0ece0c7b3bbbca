package pubsub

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus fans change signals out across API instances through Redis pub/sub.
type RedisBus struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisBus wraps an existing client. Channel names are namespaced with prefix.
func NewRedisBus(client *redis.Client, prefix string, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, prefix: prefix, logger: logger}
}

// Publish sends the payload to all instances subscribed to channel.
func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, b.prefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe streams messages for channels until ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context, channels ...string) (<-chan Message, error) {
	names := make([]string, len(channels))
	for i, channel := range channels {
		names[i] = b.prefix + channel
	}

	sub := b.client.Subscribe(ctx, names...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Message, 16)
	go func() {
		defer close(out)
		defer sub.Close() //nolint:errcheck

		incoming := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-incoming:
				if !ok {
					return
				}
				select {
				case out <- Message{Channel: strings.TrimPrefix(msg.Channel, b.prefix), Payload: []byte(msg.Payload)}:
				default:
					b.logger.Warn("dropping pubsub message, subscriber is slow", zap.String("channel", msg.Channel))
				}
			}
		}
	}()
	return out, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBus) Close() error {
	return nil
}
