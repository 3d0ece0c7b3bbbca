package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/oncall-board-api/internal/models"
	"github.com/noah-isme/oncall-board-api/pkg/jobs"
)

const jobScheduleChanged = "schedule.changed"

// Publisher sends a payload to every subscriber of channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ChangeEvent tells viewers of a track to re-fetch the schedule. It carries no
// diff; there is no replay or ordering across events.
type ChangeEvent struct {
	Event string       `json:"event"`
	Track models.Track `json:"track"`
	At    time.Time    `json:"at"`
}

// BroadcastService publishes change notifications off the request path.
type BroadcastService struct {
	publisher Publisher
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewBroadcastService builds the service and its worker queue. Call Start
// before Notify.
func NewBroadcastService(publisher Publisher, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *BroadcastService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BroadcastService{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	s.queue = jobs.NewQueue("broadcast", s.handle, cfg)
	return s
}

// Start launches the publishing workers.
func (s *BroadcastService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for the publishing workers to exit.
func (s *BroadcastService) Stop() {
	s.queue.Stop()
}

// Notify signals that the schedule of track changed. It never blocks on
// delivery and never fails the caller.
func (s *BroadcastService) Notify(ctx context.Context, track models.Track) {
	job := jobs.Job{ID: uuid.NewString(), Type: jobScheduleChanged, Payload: track}
	err := s.queue.TryEnqueue(job)
	if err == nil {
		return
	}
	if errors.Is(err, jobs.ErrQueueFull) {
		s.logger.Warn("broadcast queue full, publishing inline", zap.String("track", string(track)))
	} else {
		s.logger.Warn("broadcast queue unavailable, publishing inline", zap.String("track", string(track)), zap.Error(err))
	}
	go func() {
		if err := s.publish(context.WithoutCancel(ctx), track); err != nil {
			s.logger.Error("broadcast failed", zap.String("track", string(track)), zap.Error(err))
		}
	}()
}

func (s *BroadcastService) handle(ctx context.Context, job jobs.Job) error {
	track, ok := job.Payload.(models.Track)
	if !ok {
		s.logger.Error("unexpected broadcast payload", zap.String("job_id", job.ID), zap.Any("payload", job.Payload))
		return nil
	}
	return s.publish(ctx, track)
}

func (s *BroadcastService) publish(ctx context.Context, track models.Track) error {
	payload, err := json.Marshal(ChangeEvent{Event: track.Event(), Track: track, At: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	err = s.publisher.Publish(ctx, track.Channel(), payload)
	s.metrics.ObserveBroadcast(track, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", track.Channel(), err)
	}
	s.logger.Debug("schedule change broadcast", zap.String("track", string(track)))
	return nil
}
