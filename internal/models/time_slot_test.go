package models

import (
	"testing"
	"time"
)

func TestDurationClampedAtMidnight(t *testing.T) {
	start := time.Date(2026, 5, 4, 23, 50, 0, 0, time.UTC)
	slot := TimeSlot{StartTime: start, Category: CategoryUnknown}

	now := time.Date(2026, 5, 5, 0, 10, 0, 0, time.UTC)
	if got := slot.Duration(now); got != 10*time.Minute {
		t.Errorf("Duration = %v, want 10m", got)
	}
}

func TestDurationUsesEndTime(t *testing.T) {
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	slot := TimeSlot{StartTime: start, EndTime: &end}

	if got := slot.Duration(start.Add(10 * time.Hour)); got != 90*time.Minute {
		t.Errorf("Duration = %v, want 1h30m", got)
	}
	if slot.IsCurrent() {
		t.Error("slot with end time reported as current")
	}
}

func TestDurationOngoingSameDay(t *testing.T) {
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	slot := TimeSlot{StartTime: start}
	if got := slot.Duration(start.Add(25 * time.Minute)); got != 25*time.Minute {
		t.Errorf("Duration = %v, want 25m", got)
	}
}

func TestNextMidnightRespectsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	ts := time.Date(2026, 5, 4, 23, 30, 0, 0, loc)
	want := time.Date(2026, 5, 5, 0, 0, 0, 0, loc)
	if got := NextMidnight(ts); !got.Equal(want) {
		t.Errorf("NextMidnight = %v, want %v", got, want)
	}
}

func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory("food"); err != nil || c != CategoryFood {
		t.Errorf("ParseCategory(food) = %q, %v", c, err)
	}
	if _, err := ParseCategory("sleep"); err == nil {
		t.Error("ParseCategory(sleep) succeeded, want error")
	}
	if CategoryUnknown.IsActive() {
		t.Error("unknown must not be active")
	}
	if Category("bogus").Info().Category != CategoryUnknown {
		t.Error("unrecognized category should fall back to unknown info")
	}
}
