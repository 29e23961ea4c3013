package util

import (
	"time"

	"github.com/google/uuid"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// NewID returns a fresh opaque task identifier.
func NewID() string {
	return uuid.NewString()
}

// DateFormat renders a time as a plain yyyy-mm-dd date string.
func DateFormat(t time.Time) string {
	return t.Format(dateLayout)
}

// ClockFormat renders the time-of-day portion as HH:MM.
func ClockFormat(t time.Time) string {
	return t.Format(clockLayout)
}

// ParseClock parses an HH:MM string on the given date. Returns the zero time
// if s is empty or malformed.
func ParseClock(s string, day time.Time) time.Time {
	c, err := time.ParseInLocation(clockLayout, s, day.Location())
	if err != nil {
		return time.Time{}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, day.Location())
}

// EndOfDay returns the last instant of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// MinutesBetween returns the whole minutes from a to b, never negative.
func MinutesBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
