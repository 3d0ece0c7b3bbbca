package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/oncall-board-api/internal/models"
)

func mustSlot(t *testing.T, date, timeSlot string) models.SlotIdentity {
	t.Helper()
	slot, err := models.NewSlotIdentity(date, timeSlot)
	require.NoError(t, err)
	return slot
}

func TestClaimReturnsInsertedHolder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	slot := mustSlot(t, "2025-03-01", "14:00-15:00")

	mock.ExpectQuery("INSERT INTO assignments .* ON CONFLICT ON CONSTRAINT assignments_one_claimant DO NOTHING").
		WithArgs(sqlmock.AnyArg(), models.TrackLive, "2025-03-01", "14:00-15:00", "user-a", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-a"))

	holder, err := repo.Claim(context.Background(), models.TrackLive, slot, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "user-a", holder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimReturnsExistingHolder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	slot := mustSlot(t, "2025-03-01", "14:00-15:00")

	mock.ExpectQuery("INSERT INTO assignments").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-a"))

	holder, err := repo.Claim(context.Background(), models.TrackLive, slot, "user-b")
	require.NoError(t, err)
	assert.Equal(t, "user-a", holder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRereadsAfterConcurrentCommit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	slot := mustSlot(t, "2025-03-01", "14:00-15:00")

	mock.ExpectQuery("INSERT INTO assignments").WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM assignments WHERE track = $1 AND slot_date = $2 AND time_slot = $3 LIMIT 1")).
		WithArgs(models.TrackLive, "2025-03-01", "14:00-15:00").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-c"))

	holder, err := repo.Claim(context.Background(), models.TrackLive, slot, "user-b")
	require.NoError(t, err)
	assert.Equal(t, "user-c", holder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimGivesUpWhenHolderKeepsVanishing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	slot := mustSlot(t, "2025-03-01", "14:00-15:00")

	for i := 0; i < claimAttempts; i++ {
		mock.ExpectQuery("INSERT INTO assignments").WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
		mock.ExpectQuery("SELECT user_id FROM assignments WHERE").WillReturnError(sql.ErrNoRows)
	}

	_, err := repo.Claim(context.Background(), models.TrackLive, slot, "user-b")
	assert.ErrorIs(t, err, ErrClaimContested)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPropagatesDatabaseErrors(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	slot := mustSlot(t, "2025-03-01", "14:00-15:00")

	mock.ExpectQuery("INSERT INTO assignments").WillReturnError(errors.New("connection reset"))

	_, err := repo.Claim(context.Background(), models.TrackTest, slot, "user-a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim slot")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnclaimOnlyRemovesOwnRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)
	slot := mustSlot(t, "2025-03-01", "14:00-15:00")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE track = $1 AND slot_date = $2 AND time_slot = $3 AND user_id = $4")).
		WithArgs(models.TrackTest, "2025-03-01", "14:00-15:00", "user-a").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.Unclaim(context.Background(), models.TrackTest, slot, "user-a")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByDatesJoinsUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	rows := sqlmock.NewRows([]string{"slot_date", "time_slot", "user_id", "first_name", "last_name"}).
		AddRow("2025-03-01", "14:00-15:00", "user-a", "Ann", "Lee")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.track = $1 AND a.slot_date = ANY($2::date[])")).
		WithArgs(models.TrackLive, sqlmock.AnyArg()).
		WillReturnRows(rows)

	views, err := repo.ListByDates(context.Background(), models.TrackLive, []string{"2025-03-01", "2025-03-02"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Ann", views[0].FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())

	views, err = repo.ListByDates(context.Background(), models.TrackLive, nil)
	require.NoError(t, err)
	assert.Nil(t, views)
}

func TestClearBuildsFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE track = $1 AND slot_date >= $2 AND slot_date <= $3")).
		WithArgs(models.TrackLive, "2025-03-01", "2025-03-07").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE track = $1 AND user_id = $2")).
		WithArgs(models.TrackTest, "user-a").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.Clear(context.Background(), models.TrackLive, models.AssignmentFilter{From: "2025-03-01", To: "2025-03-07"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	n, err = repo.Clear(context.Background(), models.TrackTest, models.AssignmentFilter{UserID: "user-a"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
