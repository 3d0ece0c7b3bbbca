package models

import "time"

// Assignment marks a user as the claimant of a slot on a track. Unclaimed slots
// have no row.
type Assignment struct {
	ID        string    `db:"id" json:"id"`
	Track     Track     `db:"track" json:"track"`
	Date      string    `db:"slot_date" json:"date"`
	TimeSlot  string    `db:"time_slot" json:"time_slot"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Key returns the canonical slot key of the assignment.
func (a Assignment) Key() string {
	return CanonicalKey(a.Date, a.TimeSlot)
}

// AssignmentView is an assignment joined with its claimant's display names.
type AssignmentView struct {
	Date      string `db:"slot_date"`
	TimeSlot  string `db:"time_slot"`
	UserID    string `db:"user_id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
}

// UserRef identifies a claimant in schedule reads.
type UserRef struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ShortName renders "First L.", or just the first name without a last name.
func (u UserRef) ShortName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	r := []rune(u.LastName)
	return u.FirstName + " " + string(r[0]) + "."
}

// AssignmentFilter narrows admin clear operations. Empty fields match everything.
type AssignmentFilter struct {
	From   string
	To     string
	UserID string
}
