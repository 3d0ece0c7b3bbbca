package service

import (
	"context"
	"strings"
	"time"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

// ProjectOnCall names whoever claims the slot containing now, evaluated in loc.
// Several claimants of one slot are all listed, joined by ", ". An empty string
// means nobody is on call.
func ProjectOnCall(now time.Time, loc *time.Location, assignments map[string][]models.UserRef) string {
	claimants := assignments[models.SlotAt(now, loc).Key()]
	if len(claimants) == 0 {
		return ""
	}
	names := make([]string, len(claimants))
	for i, ref := range claimants {
		names[i] = ref.ShortName()
	}
	return strings.Join(names, ", ")
}

type slotReader interface {
	ListForSlot(ctx context.Context, track models.Track, slot models.SlotIdentity) ([]models.AssignmentView, error)
}

// OnCallService projects the live track's current claimant. It is computed on
// every call and never cached.
type OnCallService struct {
	repo  slotReader
	clock ScheduleClock
}

// NewOnCallService constructs the service.
func NewOnCallService(repo slotReader, clock ScheduleClock) *OnCallService {
	return &OnCallService{repo: repo, clock: clock.normalize()}
}

// Current returns the live on-call projection for the current slot.
func (s *OnCallService) Current(ctx context.Context) (*dto.OnCallResponse, error) {
	now := s.clock.Now()
	slot := models.SlotAt(now, s.clock.Location)
	views, err := s.repo.ListForSlot(ctx, models.TrackLive, slot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load on-call slot")
	}

	resp := &dto.OnCallResponse{Date: slot.Date(), TimeSlot: slot.TimeSlot()}
	if name := ProjectOnCall(now, s.clock.Location, groupAssignments(views)); name != "" {
		resp.OnCall = &name
	}
	return resp, nil
}

func groupAssignments(views []models.AssignmentView) map[string][]models.UserRef {
	grouped := make(map[string][]models.UserRef)
	for _, v := range views {
		key := models.CanonicalKey(v.Date, v.TimeSlot)
		grouped[key] = append(grouped[key], models.UserRef{ID: v.UserID, FirstName: v.FirstName, LastName: v.LastName})
	}
	return grouped
}
