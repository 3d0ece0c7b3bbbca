package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

type assignmentClearer interface {
	Clear(ctx context.Context, track models.Track, filter models.AssignmentFilter) (int64, error)
}

// AdminService runs bulk maintenance on a track's claims.
type AdminService struct {
	repo      assignmentClearer
	notifier  ChangeNotifier
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdminService constructs the service.
func NewAdminService(repo assignmentClearer, notifier ChangeNotifier, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AdminService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{repo: repo, notifier: notifier, cache: cache, validator: validate, logger: logger}
}

// ClearAssignments removes the claims of track selected by query: a date range,
// a user, both, or everything when query is empty.
func (s *AdminService) ClearAssignments(ctx context.Context, track models.Track, actor models.Actor, query dto.ClearAssignmentsQuery) (*dto.ClearResult, error) {
	if !track.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown track")
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clear filter")
	}
	if query.Start != "" && query.Start > query.End {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date must not be after end date")
	}

	filter := models.AssignmentFilter{From: query.Start, To: query.End, UserID: query.UserID}
	removed, err := s.repo.Clear(ctx, track, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear assignments")
	}
	s.logger.Warn("assignments cleared",
		zap.String("track", string(track)), zap.String("actor_id", actor.ID),
		zap.String("from", filter.From), zap.String("to", filter.To), zap.String("user_id", filter.UserID),
		zap.Int64("removed", removed))

	invalidateSchedule(ctx, s.cache, track)
	s.notifier.Notify(ctx, track)
	return &dto.ClearResult{Removed: removed}, nil
}
