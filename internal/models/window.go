package models

import "time"

// ScheduleWindow bounds the dates shown for a track. Both ends are inclusive.
type ScheduleWindow struct {
	Track     Track     `db:"track" json:"track"`
	Start     time.Time `db:"start_date" json:"start"`
	End       time.Time `db:"end_date" json:"end"`
	UpdatedBy *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultWindow spans today through today+days in loc.
func DefaultWindow(track Track, now time.Time, loc *time.Location, days int) ScheduleWindow {
	start := StartOfDay(now, loc)
	return ScheduleWindow{
		Track: track,
		Start: start,
		End:   start.AddDate(0, 0, days),
	}
}

// Valid reports whether the window has both bounds and start is not after end.
func (w ScheduleWindow) Valid(loc *time.Location) bool {
	if w.Start.IsZero() || w.End.IsZero() {
		return false
	}
	return !StartOfDay(w.Start, loc).After(StartOfDay(w.End, loc))
}

// Dates enumerates the window's calendar dates in loc, one per day, inclusive of
// both ends. Boundary timestamps are reduced to their calendar date first so
// sub-day precision or zone offsets never drop the last day.
func (w ScheduleWindow) Dates(loc *time.Location) []string {
	start := StartOfDay(w.Start, loc)
	end := StartOfDay(w.End, loc)
	if start.After(end) {
		return nil
	}
	var dates []string
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dates = append(dates, day.Format(DateLayout))
	}
	return dates
}

// StartOfDay returns midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndOfDay returns the last nanosecond of t's calendar date in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// AsCalendarDate rebuilds t's own calendar date at midnight in loc. DATE columns
// come back from the driver at UTC midnight; this keeps their calendar day
// instead of shifting it by the zone offset.
func AsCalendarDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
