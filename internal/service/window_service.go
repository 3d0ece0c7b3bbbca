package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

type windowRepository interface {
	Find(ctx context.Context, track models.Track) (*models.ScheduleWindow, error)
	Save(ctx context.Context, window *models.ScheduleWindow) error
}

// ScheduleClock fixes the time zone and current time schedule logic runs in.
type ScheduleClock struct {
	Location *time.Location
	Now      func() time.Time
}

func (c ScheduleClock) normalize() ScheduleClock {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// WindowService owns the per-track date window.
type WindowService struct {
	repo        windowRepository
	clock       ScheduleClock
	defaultDays int
	cache       *CacheService
	notifier    ChangeNotifier
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewWindowService constructs the service.
func NewWindowService(repo windowRepository, clock ScheduleClock, defaultDays int, cache *CacheService, notifier ChangeNotifier, validate *validator.Validate, logger *zap.Logger) *WindowService {
	if defaultDays <= 0 {
		defaultDays = 14
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowService{
		repo:        repo,
		clock:       clock.normalize(),
		defaultDays: defaultDays,
		cache:       cache,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
	}
}

// Current returns the window of track. A missing or malformed window is
// replaced by the default span starting today, and that default is persisted.
func (s *WindowService) Current(ctx context.Context, track models.Track) (models.ScheduleWindow, error) {
	loc := s.clock.Location
	stored, err := s.repo.Find(ctx, track)
	switch {
	case err == nil:
		window := *stored
		window.Start = models.AsCalendarDate(window.Start, loc)
		window.End = models.AsCalendarDate(window.End, loc)
		if window.Valid(loc) {
			return window, nil
		}
		s.logger.Warn("malformed schedule window, resetting to default",
			zap.String("track", string(track)), zap.Time("start", window.Start), zap.Time("end", window.End))
	case errors.Is(err, sql.ErrNoRows):
	default:
		return models.ScheduleWindow{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule window")
	}

	window := models.DefaultWindow(track, s.clock.Now(), loc, s.defaultDays)
	if err := s.repo.Save(ctx, &window); err != nil {
		return models.ScheduleWindow{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save default schedule window")
	}
	s.logger.Info("schedule window materialized", zap.String("track", string(track)),
		zap.String("start", window.Start.Format(models.DateLayout)), zap.String("end", window.End.Format(models.DateLayout)))
	return window, nil
}

// Set replaces the window of track. Start is taken from the start of its day and
// end from the end of its day; start after end is rejected.
func (s *WindowService) Set(ctx context.Context, track models.Track, actor models.Actor, req dto.WindowRequest) (models.ScheduleWindow, error) {
	if !track.Valid() {
		return models.ScheduleWindow{}, appErrors.Clone(appErrors.ErrValidation, "unknown track")
	}
	if err := s.validator.Struct(req); err != nil {
		return models.ScheduleWindow{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid window payload")
	}
	loc := s.clock.Location
	start, err := time.ParseInLocation(models.DateLayout, req.Start, loc)
	if err != nil {
		return models.ScheduleWindow{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start date")
	}
	end, err := time.ParseInLocation(models.DateLayout, req.End, loc)
	if err != nil {
		return models.ScheduleWindow{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end date")
	}
	if start.After(end) {
		return models.ScheduleWindow{}, appErrors.Clone(appErrors.ErrValidation, "start date must not be after end date")
	}

	updatedBy := actor.ID
	window := models.ScheduleWindow{
		Track:     track,
		Start:     models.StartOfDay(start, loc),
		End:       models.EndOfDay(end, loc),
		UpdatedBy: &updatedBy,
	}
	if err := s.repo.Save(ctx, &window); err != nil {
		return models.ScheduleWindow{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save schedule window")
	}
	s.logger.Info("schedule window updated", zap.String("track", string(track)), zap.String("actor_id", actor.ID),
		zap.String("start", req.Start), zap.String("end", req.End))

	invalidateSchedule(ctx, s.cache, track)
	s.notifier.Notify(ctx, track)
	return window, nil
}

// Location returns the schedule time zone.
func (s *WindowService) Location() *time.Location {
	return s.clock.Location
}

// WindowResponse renders a window for the API.
func WindowResponse(window models.ScheduleWindow, loc *time.Location) dto.WindowResponse {
	return dto.WindowResponse{
		Track: string(window.Track),
		Start: window.Start.In(loc).Format(models.DateLayout),
		End:   window.End.In(loc).Format(models.DateLayout),
		Dates: window.Dates(loc),
	}
}
