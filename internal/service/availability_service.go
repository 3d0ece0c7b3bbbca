package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	"github.com/noah-isme/oncall-board-api/internal/repository"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

// AssignmentWriter is the atomic per-slot write surface of the assignment store.
type AssignmentWriter interface {
	// Claim records userID unless the slot is held and returns the holder afterwards.
	Claim(ctx context.Context, track models.Track, slot models.SlotIdentity, userID string) (string, error)
	Unclaim(ctx context.Context, track models.Track, slot models.SlotIdentity, userID string) (bool, error)
}

// ChangeNotifier is told once per applied batch that a track changed.
type ChangeNotifier interface {
	Notify(ctx context.Context, track models.Track)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AvailabilityService applies claim and unclaim intents.
type AvailabilityService struct {
	store     AssignmentWriter
	users     userLookup
	notifier  ChangeNotifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(store AssignmentWriter, users userLookup, notifier ChangeNotifier, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AvailabilityService{
		store:     store,
		users:     users,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// ApplyBatch applies changes in submitted order, each seeing the effect of the
// ones before it. Conflicts reject single intents without aborting the batch.
// A store failure stops the batch and fails the call; intents applied before
// it stay applied. Viewers of the track are notified once at the end.
func (s *AvailabilityService) ApplyBatch(ctx context.Context, track models.Track, actor models.Actor, req dto.BatchChangeRequest) (*dto.BatchResult, error) {
	if !track.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown track")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	intents, err := s.buildIntents(ctx, actor, req.Changes)
	if err != nil {
		return nil, err
	}

	// Once started, a batch runs to completion even if the client goes away.
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	result := &dto.BatchResult{Success: true, Rejected: []dto.RejectedChange{}}

	var applyErr error
	for i, intent := range intents {
		decision, err := s.apply(ctx, track, intent)
		if err != nil {
			s.metrics.ObserveIntent(track, intent.Claimed, OutcomeFailed)
			applyErr = fmt.Errorf("intent %d: %w", i, err)
			break
		}
		if decision.Accepted {
			result.Accepted++
			s.metrics.ObserveIntent(track, intent.Claimed, OutcomeAccepted)
			continue
		}
		s.metrics.ObserveIntent(track, intent.Claimed, OutcomeRejected)
		result.Rejected = append(result.Rejected, dto.RejectedChange{
			Index:    i,
			Date:     intent.Slot.Date(),
			TimeSlot: intent.Slot.TimeSlot(),
			Reason:   decision.Reason,
		})
	}
	s.metrics.ObserveBatch(track, time.Since(start))

	invalidateSchedule(ctx, s.cache, track)
	s.notifier.Notify(ctx, track)

	if applyErr != nil {
		s.logger.Error("availability batch failed",
			zap.String("track", string(track)), zap.String("actor_id", actor.ID),
			zap.Int("accepted", result.Accepted), zap.Int("size", len(intents)), zap.Error(applyErr))
		return nil, appErrors.Wrap(applyErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply availability changes")
	}

	s.logger.Info("availability batch applied",
		zap.String("track", string(track)), zap.String("actor_id", actor.ID),
		zap.Int("accepted", result.Accepted), zap.Int("rejected", len(result.Rejected)))
	return result, nil
}

// ApplyChange applies one change for the acting user as a batch of one.
func (s *AvailabilityService) ApplyChange(ctx context.Context, track models.Track, actor models.Actor, req dto.SingleChangeRequest) (*dto.ChangeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	batch := dto.BatchChangeRequest{Changes: []dto.AvailabilityChange{{
		Date:      req.Date,
		TimeSlot:  req.TimeSlot,
		Available: req.Available,
	}}}
	result, err := s.ApplyBatch(ctx, track, actor, batch)
	if err != nil {
		return nil, err
	}
	if len(result.Rejected) > 0 {
		return &dto.ChangeResult{
			Success: false,
			Code:    appErrors.ErrSlotClaimed.Code,
			Message: result.Rejected[0].Reason,
		}, nil
	}
	return &dto.ChangeResult{Success: true}, nil
}

func (s *AvailabilityService) apply(ctx context.Context, track models.Track, intent ClaimIntent) (ClaimDecision, error) {
	target := intent.EffectiveTarget()
	if !intent.Claimed {
		if _, err := s.store.Unclaim(ctx, track, intent.Slot, target); err != nil {
			return ClaimDecision{}, err
		}
		return ResolveClaim(intent, ""), nil
	}

	holder, err := s.store.Claim(ctx, track, intent.Slot, target)
	if errors.Is(err, repository.ErrClaimContested) {
		return ClaimDecision{Reason: ReasonSlotClaimed}, nil
	}
	if err != nil {
		return ClaimDecision{}, err
	}
	return ResolveClaim(intent, holder), nil
}

// buildIntents validates every change before any is applied, so a malformed
// item never leaves a half-applied batch behind.
func (s *AvailabilityService) buildIntents(ctx context.Context, actor models.Actor, changes []dto.AvailabilityChange) ([]ClaimIntent, error) {
	intents := make([]ClaimIntent, 0, len(changes))
	checked := make(map[string]struct{})
	for i, change := range changes {
		slot, err := models.NewSlotIdentity(change.Date, change.TimeSlot)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("change %d: %v", i, err))
		}
		intent := ClaimIntent{Slot: slot, Actor: actor, TargetUser: change.TargetUserID, Claimed: change.Claimed()}
		if target := intent.EffectiveTarget(); target != actor.ID {
			if _, ok := checked[target]; !ok {
				if err := s.ensureUser(ctx, target); err != nil {
					return nil, err
				}
				checked[target] = struct{}{}
			}
		}
		intents = append(intents, intent)
	}
	return intents, nil
}

func (s *AvailabilityService) ensureUser(ctx context.Context, id string) error {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown target user %q", id))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target user")
	}
	return nil
}

func scheduleCachePattern(track models.Track) string {
	return "schedule:" + string(track) + ":*"
}

func scheduleGenerationKey(track models.Track) string {
	return "schedule-gen:" + string(track)
}

func scheduleCacheKey(track models.Track, gen int64, first, last string) string {
	return fmt.Sprintf("schedule:%s:%d:%s:%s", track, gen, first, last)
}

func invalidateSchedule(ctx context.Context, cache *CacheService, track models.Track) {
	cache.InvalidateGeneration(ctx, scheduleGenerationKey(track), scheduleCachePattern(track))
}
