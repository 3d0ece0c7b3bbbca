package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/oncall-board-api/internal/models"
)

// claimAttempts bounds retries when a competing holder disappears between the
// conditional insert and the follow-up read.
const claimAttempts = 3

// ErrClaimContested is returned when the holder of a slot kept changing across
// every claim attempt.
var ErrClaimContested = errors.New("claim contested")

const viewColumns = `to_char(a.slot_date, 'YYYY-MM-DD') AS slot_date, a.time_slot, a.user_id, u.first_name, u.last_name`

// AssignmentRepository persists slot claims. The unique constraint on
// (track, slot_date, time_slot) keeps at most one claimant per slot.
type AssignmentRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAssignmentRepository creates a new instance of AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Claim inserts userID as claimant unless the slot is already held, and returns
// whoever holds the slot afterwards. Check and write run as one statement.
func (r *AssignmentRepository) Claim(ctx context.Context, track models.Track, slot models.SlotIdentity, userID string) (string, error) {
	const query = `WITH inserted AS (
	INSERT INTO assignments (id, track, slot_date, time_slot, user_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6)
	ON CONFLICT ON CONSTRAINT assignments_one_claimant DO NOTHING
	RETURNING user_id
)
SELECT user_id FROM inserted
UNION ALL
SELECT user_id FROM assignments WHERE track = $2 AND slot_date = $3 AND time_slot = $4
LIMIT 1`

	for attempt := 0; attempt < claimAttempts; attempt++ {
		var holder string
		err := r.db.GetContext(ctx, &holder, query, uuid.NewString(), track, slot.Date(), slot.TimeSlot(), userID, r.now())
		if err == nil {
			return holder, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("claim slot: %w", err)
		}

		// A concurrent claim committed after this statement's snapshot was taken.
		holder, err = r.FindClaimant(ctx, track, slot)
		if err != nil {
			return "", err
		}
		if holder != "" {
			return holder, nil
		}
	}
	return "", ErrClaimContested
}

// Unclaim removes userID's claim on the slot and reports whether a row was removed.
func (r *AssignmentRepository) Unclaim(ctx context.Context, track models.Track, slot models.SlotIdentity, userID string) (bool, error) {
	const query = `DELETE FROM assignments WHERE track = $1 AND slot_date = $2 AND time_slot = $3 AND user_id = $4`
	res, err := r.db.ExecContext(ctx, query, track, slot.Date(), slot.TimeSlot(), userID)
	if err != nil {
		return false, fmt.Errorf("unclaim slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unclaim slot: %w", err)
	}
	return n > 0, nil
}

// FindClaimant returns the user holding the slot, or "" when it is free.
func (r *AssignmentRepository) FindClaimant(ctx context.Context, track models.Track, slot models.SlotIdentity) (string, error) {
	const query = `SELECT user_id FROM assignments WHERE track = $1 AND slot_date = $2 AND time_slot = $3 LIMIT 1`
	var holder string
	if err := r.db.GetContext(ctx, &holder, query, track, slot.Date(), slot.TimeSlot()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("find claimant: %w", err)
	}
	return holder, nil
}

// ListByDates returns the claims of track on the given dates joined with
// claimant names. Rows outside dates are never returned.
func (r *AssignmentRepository) ListByDates(ctx context.Context, track models.Track, dates []string) ([]models.AssignmentView, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	query := `SELECT ` + viewColumns + ` FROM assignments a JOIN users u ON u.id = a.user_id
WHERE a.track = $1 AND a.slot_date = ANY($2::date[])
ORDER BY a.slot_date, a.time_slot, a.created_at`
	var views []models.AssignmentView
	if err := r.db.SelectContext(ctx, &views, query, track, pq.Array(dates)); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return views, nil
}

// ListForSlot returns every claim recorded for a single slot.
func (r *AssignmentRepository) ListForSlot(ctx context.Context, track models.Track, slot models.SlotIdentity) ([]models.AssignmentView, error) {
	query := `SELECT ` + viewColumns + ` FROM assignments a JOIN users u ON u.id = a.user_id
WHERE a.track = $1 AND a.slot_date = $2 AND a.time_slot = $3
ORDER BY a.created_at`
	var views []models.AssignmentView
	if err := r.db.SelectContext(ctx, &views, query, track, slot.Date(), slot.TimeSlot()); err != nil {
		return nil, fmt.Errorf("list slot assignments: %w", err)
	}
	return views, nil
}

// Clear deletes the claims of track matching filter and reports how many went.
func (r *AssignmentRepository) Clear(ctx context.Context, track models.Track, filter models.AssignmentFilter) (int64, error) {
	conditions := []string{"track = $1"}
	args := []interface{}{track}
	if filter.From != "" {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("slot_date >= $%d", len(args)))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("slot_date <= $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}

	query := "DELETE FROM assignments WHERE " + strings.Join(conditions, " AND ")
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear assignments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear assignments: %w", err)
	}
	return n, nil
}
