package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

type assignmentReader interface {
	ListByDates(ctx context.Context, track models.Track, dates []string) ([]models.AssignmentView, error)
}

type windowProvider interface {
	Current(ctx context.Context, track models.Track) (models.ScheduleWindow, error)
}

type onCallProvider interface {
	Current(ctx context.Context) (*dto.OnCallResponse, error)
}

type userLister interface {
	List(ctx context.Context) ([]models.User, error)
}

// ScheduleGrid is the cacheable part of a schedule read. It holds nothing that
// depends on the viewer or the current time.
type ScheduleGrid struct {
	Dates       []string                    `json:"dates"`
	Assignments map[string][]models.UserRef `json:"assignments"`
}

// ScheduleService assembles the schedule grid of a track.
type ScheduleService struct {
	assignments assignmentReader
	windows     windowProvider
	onCall      onCallProvider
	users       userLister
	cache       *CacheService
	clock       ScheduleClock
	logger      *zap.Logger
}

// NewScheduleService constructs the service.
func NewScheduleService(assignments assignmentReader, windows windowProvider, onCall onCallProvider, users userLister, cache *CacheService, clock ScheduleClock, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		assignments: assignments,
		windows:     windows,
		onCall:      onCall,
		users:       users,
		cache:       cache,
		clock:       clock.normalize(),
		logger:      logger,
	}
}

// Schedule returns the window's dates, the 24 slot labels and the claims within
// the window. The live track adds the current on-call projection and admins get
// the user list for target selection.
func (s *ScheduleService) Schedule(ctx context.Context, track models.Track, actor models.Actor) (*dto.ScheduleResponse, error) {
	if !track.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown track")
	}
	grid, err := s.Grid(ctx, track)
	if err != nil {
		return nil, err
	}

	resp := &dto.ScheduleResponse{
		Track:       track,
		Dates:       grid.Dates,
		TimeSlots:   models.TimeSlots(),
		Assignments: grid.Assignments,
	}

	if track.HasOnCall() {
		current, err := s.onCall.Current(ctx)
		if err != nil {
			return nil, err
		}
		resp.OnCall = current.OnCall
	}

	if actor.IsAdmin() {
		users, err := s.users.List(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
		}
		resp.Users = make([]dto.UserSummary, len(users))
		for i, u := range users {
			resp.Users[i] = dto.NewUserSummary(u)
		}
	}
	return resp, nil
}

// Grid returns the dates and claims of the track's current window.
func (s *ScheduleService) Grid(ctx context.Context, track models.Track) (*ScheduleGrid, error) {
	window, err := s.windows.Current(ctx, track)
	if err != nil {
		return nil, err
	}
	dates := window.Dates(s.clock.Location)

	var cacheKey string
	gen, cacheable := s.cache.Generation(ctx, scheduleGenerationKey(track))
	if cacheable && len(dates) > 0 {
		cacheKey = scheduleCacheKey(track, gen, dates[0], dates[len(dates)-1])
		var cached ScheduleGrid
		if s.cache.Get(ctx, cacheKey, &cached) {
			return &cached, nil
		}
	}

	views, err := s.assignments.ListByDates(ctx, track, dates)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	grid := &ScheduleGrid{Dates: dates, Assignments: groupAssignments(views)}
	if cacheKey != "" {
		s.cache.SetForGeneration(ctx, scheduleGenerationKey(track), gen, cacheKey, grid, 0)
	}
	return grid, nil
}
