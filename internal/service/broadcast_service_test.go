package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/oncall-board-api/internal/models"
	"github.com/noah-isme/oncall-board-api/pkg/jobs"
)

type publisherStub struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	failures int
}

func (p *publisherStub) Publish(ctx context.Context, channel string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("bus down")
	}
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *publisherStub) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.channels...)
}

func TestBroadcastPublishesTrackEvent(t *testing.T) {
	pub := &publisherStub{}
	svc := NewBroadcastService(pub, NewMetricsService(), nil, jobs.QueueConfig{Workers: 1})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(context.Background(), models.TrackTest)

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "schedule:test", pub.published()[0])

	var event ChangeEvent
	pub.mu.Lock()
	require.NoError(t, json.Unmarshal(pub.payloads[0], &event))
	pub.mu.Unlock()
	assert.Equal(t, "updateTestAvailability", event.Event)
	assert.Equal(t, models.TrackTest, event.Track)
}

func TestBroadcastRetriesFailedPublish(t *testing.T) {
	pub := &publisherStub{failures: 1}
	metrics := NewMetricsService()
	svc := NewBroadcastService(pub, metrics, nil, jobs.QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(context.Background(), models.TrackLive)

	require.Eventually(t, func() bool { return metrics.Snapshot().BroadcastsSent == 1 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, metrics.Snapshot().BroadcastsFailed)
	assert.Len(t, pub.published(), 1)
}

func TestBroadcastPublishesInlineWhenQueueStopped(t *testing.T) {
	pub := &publisherStub{}
	svc := NewBroadcastService(pub, nil, nil, jobs.QueueConfig{})

	svc.Notify(context.Background(), models.TrackLive)

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "schedule:live", pub.published()[0])
}

func TestBroadcastPublishesInlineAfterStop(t *testing.T) {
	pub := &publisherStub{}
	svc := NewBroadcastService(pub, nil, nil, jobs.QueueConfig{Workers: 1, BufferSize: 4})
	svc.Start(context.Background())
	svc.Stop()

	for i := 0; i < 10; i++ {
		svc.Notify(context.Background(), models.TrackTest)
	}

	require.Eventually(t, func() bool { return len(pub.published()) == 10 }, time.Second, 5*time.Millisecond)
	for _, channel := range pub.published() {
		assert.Equal(t, "schedule:test", channel)
	}
}
