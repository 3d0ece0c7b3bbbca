// Package pubsub carries change signals between API instances and the
// connection hubs that relay them to viewers.
package pubsub

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("pubsub: bus closed")

// Message is a payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}

// Bus publishes payloads to named channels and streams them to subscribers.
// Delivery is best effort: no replay for late subscribers, no ordering across channels.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan Message, error)
	Close() error
}

// MemoryBus is an in-process Bus used when Redis is not configured.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Message]struct{}
	buffer int
	closed bool
}

// NewMemoryBus builds an in-process bus. Slow subscribers drop messages once
// their buffer is full.
func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = 16
	}
	return &MemoryBus{subs: make(map[string]map[chan Message]struct{}), buffer: buffer}
}

// Publish fans the payload out to every current subscriber of channel.
func (b *MemoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for sub := range b.subs[channel] {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- Message{Channel: channel, Payload: payload}:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscription that ends when ctx is cancelled.
func (b *MemoryBus) Subscribe(ctx context.Context, channels ...string) (<-chan Message, error) {
	out := make(chan Message, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	for _, channel := range channels {
		if b.subs[channel] == nil {
			b.subs[channel] = make(map[chan Message]struct{})
		}
		b.subs[channel][out] = struct{}{}
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.unsubscribe(out, channels)
	}()
	return out, nil
}

// Close drops every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	closed := make(map[chan Message]struct{})
	for _, subs := range b.subs {
		for sub := range subs {
			if _, done := closed[sub]; !done {
				close(sub)
				closed[sub] = struct{}{}
			}
		}
	}
	b.subs = make(map[string]map[chan Message]struct{})
	return nil
}

func (b *MemoryBus) unsubscribe(sub chan Message, channels []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, channel := range channels {
		delete(b.subs[channel], sub)
		if len(b.subs[channel]) == 0 {
			delete(b.subs, channel)
		}
	}
	close(sub)
}
