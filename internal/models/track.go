package models

import "fmt"

// Track identifies an independent scheduling instance.
type Track string

const (
	TrackLive Track = "live"
	TrackTest Track = "test"
)

// Tracks lists every known track in a stable order.
func Tracks() []Track {
	return []Track{TrackLive, TrackTest}
}

// ParseTrack validates a track name coming from a route or payload.
func ParseTrack(value string) (Track, error) {
	track := Track(value)
	if !track.Valid() {
		return "", fmt.Errorf("unknown track %q", value)
	}
	return track, nil
}

// Valid reports whether the track is known.
func (t Track) Valid() bool {
	return t == TrackLive || t == TrackTest
}

// HasOnCall reports whether an on-call projection exists for the track.
func (t Track) HasOnCall() bool {
	return t == TrackLive
}

// Event is the change notification name viewers of the track listen for.
func (t Track) Event() string {
	if t == TrackTest {
		return "updateTestAvailability"
	}
	return "updateAvailability"
}

// Channel is the pub/sub topic carrying the track's change notifications.
func (t Track) Channel() string {
	return "schedule:" + string(t)
}
