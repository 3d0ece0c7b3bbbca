package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

type windowRepoStub struct {
	stored  *models.ScheduleWindow
	findErr error
	saved   []models.ScheduleWindow
}

func (s *windowRepoStub) Find(ctx context.Context, track models.Track) (*models.ScheduleWindow, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.stored == nil {
		return nil, sql.ErrNoRows
	}
	clone := *s.stored
	return &clone, nil
}

func (s *windowRepoStub) Save(ctx context.Context, window *models.ScheduleWindow) error {
	s.saved = append(s.saved, *window)
	clone := *window
	s.stored = &clone
	return nil
}

func fixedClock(t *testing.T) ScheduleClock {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2025, 3, 10, 15, 30, 0, 0, loc)
	return ScheduleClock{Location: loc, Now: func() time.Time { return now }}
}

func TestWindowCurrentMaterializesDefault(t *testing.T) {
	repo := &windowRepoStub{}
	clock := fixedClock(t)
	svc := NewWindowService(repo, clock, 14, nil, &notifierStub{}, nil, nil)

	window, err := svc.Current(context.Background(), models.TrackLive)
	require.NoError(t, err)
	require.Len(t, repo.saved, 1)

	dates := window.Dates(clock.Location)
	require.Len(t, dates, 15)
	assert.Equal(t, "2025-03-10", dates[0])
	assert.Equal(t, "2025-03-24", dates[14])

	_, err = svc.Current(context.Background(), models.TrackLive)
	require.NoError(t, err)
	assert.Len(t, repo.saved, 1, "stored window is reused")
}

func TestWindowCurrentKeepsStoredCalendarDates(t *testing.T) {
	clock := fixedClock(t)
	repo := &windowRepoStub{stored: &models.ScheduleWindow{
		Track: models.TrackTest,
		Start: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC),
	}}
	svc := NewWindowService(repo, clock, 14, nil, &notifierStub{}, nil, nil)

	window, err := svc.Current(context.Background(), models.TrackTest)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-04-01", "2025-04-02", "2025-04-03"}, window.Dates(clock.Location))
	assert.Empty(t, repo.saved)
}

func TestWindowCurrentResetsMalformedWindow(t *testing.T) {
	clock := fixedClock(t)
	repo := &windowRepoStub{stored: &models.ScheduleWindow{
		Track: models.TrackLive,
		Start: time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}}
	svc := NewWindowService(repo, clock, 14, nil, &notifierStub{}, nil, nil)

	window, err := svc.Current(context.Background(), models.TrackLive)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", window.Dates(clock.Location)[0])
	assert.Len(t, repo.saved, 1)
}

func TestWindowCurrentPropagatesStoreFailure(t *testing.T) {
	repo := &windowRepoStub{findErr: errors.New("db down")}
	svc := NewWindowService(repo, fixedClock(t), 14, nil, &notifierStub{}, nil, nil)

	_, err := svc.Current(context.Background(), models.TrackLive)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestWindowSet(t *testing.T) {
	clock := fixedClock(t)
	repo := &windowRepoStub{}
	notifier := &notifierStub{}
	svc := NewWindowService(repo, clock, 14, nil, notifier, nil, nil)

	window, err := svc.Set(context.Background(), models.TrackLive, admin, dto.WindowRequest{Start: "2025-05-01", End: "2025-05-03"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-05-01", "2025-05-02", "2025-05-03"}, window.Dates(clock.Location))
	assert.Equal(t, 0, window.Start.In(clock.Location).Hour())
	assert.Equal(t, 23, window.End.In(clock.Location).Hour())
	require.NotNil(t, window.UpdatedBy)
	assert.Equal(t, admin.ID, *window.UpdatedBy)
	assert.Equal(t, 1, notifier.count(models.TrackLive))

	resp := WindowResponse(window, svc.Location())
	assert.Equal(t, "2025-05-01", resp.Start)
	assert.Equal(t, "2025-05-03", resp.End)
	assert.Len(t, resp.Dates, 3)
}

func TestWindowSetSingleDay(t *testing.T) {
	clock := fixedClock(t)
	svc := NewWindowService(&windowRepoStub{}, clock, 14, nil, &notifierStub{}, nil, nil)

	window, err := svc.Set(context.Background(), models.TrackTest, admin, dto.WindowRequest{Start: "2025-05-01", End: "2025-05-01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-05-01"}, window.Dates(clock.Location))
}

func TestWindowSetRejectsInvalidInput(t *testing.T) {
	repo := &windowRepoStub{}
	notifier := &notifierStub{}
	svc := NewWindowService(repo, fixedClock(t), 14, nil, notifier, nil, nil)

	_, err := svc.Set(context.Background(), models.TrackLive, admin, dto.WindowRequest{Start: "2025-05-03", End: "2025-05-01"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Set(context.Background(), models.TrackLive, admin, dto.WindowRequest{Start: "05/01/2025", End: "2025-05-01"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Set(context.Background(), models.Track("staging"), admin, dto.WindowRequest{Start: "2025-05-01", End: "2025-05-01"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Empty(t, repo.saved)
	assert.Equal(t, 0, notifier.count(models.TrackLive))
}
