package util

import (
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if id == "" {
			t.Fatal("NewID returned empty string")
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %q", id)
		}
		seen[id] = true
	}
}

func TestDateFormat(t *testing.T) {
	d := time.Date(2024, 3, 7, 18, 30, 0, 0, time.UTC)
	if got := DateFormat(d); got != "2024-03-07" {
		t.Errorf("DateFormat = %q, want 2024-03-07", got)
	}
}

func TestClockFormat(t *testing.T) {
	d := time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC)
	if got := ClockFormat(d); got != "09:05" {
		t.Errorf("ClockFormat = %q, want 09:05", got)
	}
}

func TestParseClock(t *testing.T) {
	day := time.Date(2024, 3, 7, 0, 0, 0, 0, time.Local)
	got := ParseClock("14:45", day)
	want := time.Date(2024, 3, 7, 14, 45, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("ParseClock = %v, want %v", got, want)
	}
	if !ParseClock("", day).IsZero() {
		t.Error("ParseClock of empty string should be zero time")
	}
	if !ParseClock("25:99", day).IsZero() {
		t.Error("ParseClock of malformed string should be zero time")
	}
}

func TestEndOfDay(t *testing.T) {
	d := time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	end := EndOfDay(d)
	if end.Day() != 7 || end.Hour() != 23 || end.Minute() != 59 {
		t.Errorf("EndOfDay = %v", end)
	}
	if !end.After(d) {
		t.Error("EndOfDay should be after the input instant")
	}
}

func TestMinutesBetween(t *testing.T) {
	a := time.Date(2024, 3, 7, 9, 0, 0, 0, time.UTC)
	b := a.Add(90 * time.Minute)
	if got := MinutesBetween(a, b); got != 90 {
		t.Errorf("MinutesBetween = %d, want 90", got)
	}
	if got := MinutesBetween(b, a); got != 0 {
		t.Errorf("MinutesBetween reversed = %d, want 0", got)
	}
}
