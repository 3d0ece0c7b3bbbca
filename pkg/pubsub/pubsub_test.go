package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversOnlySubscribedChannel(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live, err := bus.Subscribe(ctx, "schedule:live")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "schedule:test", []byte("test")))
	require.NoError(t, bus.Publish(ctx, "schedule:live", []byte("live")))

	select {
	case msg := <-live:
		assert.Equal(t, "schedule:live", msg.Channel)
		assert.Equal(t, "live", string(msg.Payload))
	case <-time.After(time.Second):
		t.Fatal("expected live message")
	}

	select {
	case msg := <-live:
		t.Fatalf("unexpected message %q", msg.Payload)
	default:
	}
}

func TestMemoryBusSubscriptionEndsWithContext(t *testing.T) {
	bus := NewMemoryBus(1)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := bus.Subscribe(ctx, "schedule:live")
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	assert.NoError(t, bus.Publish(context.Background(), "schedule:live", []byte("late")))
}

func TestMemoryBusClosedRejectsPublish(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(context.Background(), "schedule:live", nil), ErrClosed)
	_, err := bus.Subscribe(context.Background(), "schedule:live")
	assert.ErrorIs(t, err, ErrClosed)
}
