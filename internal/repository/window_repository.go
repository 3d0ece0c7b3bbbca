package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/oncall-board-api/internal/models"
)

// WindowRepository stores one schedule window per track.
type WindowRepository struct {
	db *sqlx.DB
}

// NewWindowRepository creates a new instance of WindowRepository.
func NewWindowRepository(db *sqlx.DB) *WindowRepository {
	return &WindowRepository{db: db}
}

// Find returns the stored window of track or sql.ErrNoRows. Start and End come
// back at UTC midnight of their calendar dates.
func (r *WindowRepository) Find(ctx context.Context, track models.Track) (*models.ScheduleWindow, error) {
	const query = `SELECT track, start_date, end_date, updated_by, updated_at FROM schedule_windows WHERE track = $1`
	var window models.ScheduleWindow
	if err := r.db.GetContext(ctx, &window, query, track); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule window: %w", err)
	}
	return &window, nil
}

// Save upserts the window. Bounds are stored as the calendar dates they carry in
// their own location.
func (r *WindowRepository) Save(ctx context.Context, window *models.ScheduleWindow) error {
	window.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO schedule_windows (track, start_date, end_date, updated_by, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (track) DO UPDATE SET start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
	updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		window.Track,
		window.Start.Format(models.DateLayout),
		window.End.Format(models.DateLayout),
		window.UpdatedBy,
		window.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save schedule window: %w", err)
	}
	return nil
}
