package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSlotsAreFixed(t *testing.T) {
	slots := TimeSlots()
	require.Len(t, slots, SlotsPerDay)
	assert.Equal(t, "00:00-01:00", slots[0])
	assert.Equal(t, "14:00-15:00", slots[14])
	assert.Equal(t, "23:00-24:00", slots[23])

	slots[0] = "mutated"
	assert.Equal(t, "00:00-01:00", TimeSlots()[0])
}

func TestNewSlotIdentityValidates(t *testing.T) {
	slot, err := NewSlotIdentity("2025-03-01", "14:00-15:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01||14:00-15:00", slot.Key())
	assert.Equal(t, "2025-03-01", slot.Date())
	assert.Equal(t, "14:00-15:00", slot.TimeSlot())

	for _, tc := range []struct{ date, slot string }{
		{"2025-02-30", "14:00-15:00"},
		{"03/01/2025", "14:00-15:00"},
		{"2025-03-01", "14:00-16:00"},
		{"2025-03-01", "14:30-15:30"},
		{"2025-03-01", "24:00-25:00"},
		{"2025-03-01", ""},
	} {
		_, err := NewSlotIdentity(tc.date, tc.slot)
		assert.Error(t, err, "%s %s", tc.date, tc.slot)
	}
}

func TestCanonicalKeyRoundTrip(t *testing.T) {
	key := CanonicalKey("2025-03-01", "23:00-24:00")
	date, slot, ok := SplitKey(key)
	require.True(t, ok)
	assert.Equal(t, "2025-03-01", date)
	assert.Equal(t, "23:00-24:00", slot)
}

func TestSlotAtUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	now := time.Date(2025, 3, 2, 3, 30, 0, 0, time.UTC)
	slot := SlotAt(now, loc)
	assert.Equal(t, "2025-03-01", slot.Date())
	assert.Equal(t, "22:00-23:00", slot.TimeSlot())
}

func TestUserRefShortName(t *testing.T) {
	assert.Equal(t, "Ann L.", UserRef{FirstName: "Ann", LastName: "Lee"}.ShortName())
	assert.Equal(t, "Ann", UserRef{FirstName: "Ann"}.ShortName())
	assert.Equal(t, "Zoë É.", UserRef{FirstName: "Zoë", LastName: "Émile"}.ShortName())
}

func TestParseTrack(t *testing.T) {
	track, err := ParseTrack("test")
	require.NoError(t, err)
	assert.Equal(t, TrackTest, track)
	assert.False(t, track.HasOnCall())
	assert.Equal(t, "updateTestAvailability", track.Event())
	assert.Equal(t, "updateAvailability", TrackLive.Event())
	assert.Equal(t, "schedule:live", TrackLive.Channel())

	_, err = ParseTrack("staging")
	assert.Error(t, err)
}
