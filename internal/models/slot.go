package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the calendar-date format used for slot dates.
	DateLayout = "2006-01-02"
	// SlotsPerDay is the number of hour-long slots in a day.
	SlotsPerDay = 24

	keySeparator = "||"
)

var (
	timeSlots = buildTimeSlots()
	slotIndex = indexTimeSlots(timeSlots)
)

func buildTimeSlots() []string {
	labels := make([]string, SlotsPerDay)
	for h := 0; h < SlotsPerDay; h++ {
		labels[h] = fmt.Sprintf("%02d:00-%02d:00", h, h+1)
	}
	return labels
}

func indexTimeSlots(labels []string) map[string]int {
	index := make(map[string]int, len(labels))
	for i, label := range labels {
		index[label] = i
	}
	return index
}

// TimeSlots returns the 24 fixed hour labels, 00:00-01:00 through 23:00-24:00.
func TimeSlots() []string {
	out := make([]string, len(timeSlots))
	copy(out, timeSlots)
	return out
}

// TimeSlotForHour returns the label of the slot starting at hour.
func TimeSlotForHour(hour int) string {
	return timeSlots[hour]
}

// ValidTimeSlot reports whether label is one of the fixed slot labels.
func ValidTimeSlot(label string) bool {
	_, ok := slotIndex[label]
	return ok
}

// SlotIdentity is a calendar date paired with one hour-long slot label.
type SlotIdentity struct {
	date     string
	timeSlot string
}

// NewSlotIdentity validates both parts of a slot.
func NewSlotIdentity(date, timeSlot string) (SlotIdentity, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return SlotIdentity{}, fmt.Errorf("invalid date %q", date)
	}
	if !ValidTimeSlot(timeSlot) {
		return SlotIdentity{}, fmt.Errorf("invalid time slot %q", timeSlot)
	}
	return SlotIdentity{date: date, timeSlot: timeSlot}, nil
}

// SlotAt returns the slot containing t, evaluated in loc.
func SlotAt(t time.Time, loc *time.Location) SlotIdentity {
	local := t.In(loc)
	return SlotIdentity{date: local.Format(DateLayout), timeSlot: timeSlots[local.Hour()]}
}

// Date returns the slot's calendar date.
func (s SlotIdentity) Date() string { return s.date }

// TimeSlot returns the slot's hour label.
func (s SlotIdentity) TimeSlot() string { return s.timeSlot }

// Key returns the canonical key of the slot.
func (s SlotIdentity) Key() string { return CanonicalKey(s.date, s.timeSlot) }

// IsZero reports whether the slot was never constructed.
func (s SlotIdentity) IsZero() bool { return s.date == "" && s.timeSlot == "" }

// CanonicalKey joins a date and a slot label. The separator never occurs in
// either part.
func CanonicalKey(date, timeSlot string) string {
	return date + keySeparator + timeSlot
}

// SplitKey is the inverse of CanonicalKey.
func SplitKey(key string) (date, timeSlot string, ok bool) {
	return strings.Cut(key, keySeparator)
}
