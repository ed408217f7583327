package models

import (
	"errors"
	"time"
)

// ErrInvalidDuration is returned when a slot would start before the last stored slot
var ErrInvalidDuration = errors.New("invalid time slot duration")

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// TimeSlot is a contiguous interval tagged with one activity category.
// StartTime identifies the slot and never changes after creation.
type TimeSlot struct {
	StartTime            time.Time  `json:"start_time"`
	EndTime              *time.Time `json:"end_time,omitempty"` // nil while current
	Category             Category   `json:"category"`
	CategoryWasSetByUser bool       `json:"category_was_set_by_user"`
	Location             *GeoPoint  `json:"location,omitempty"`
	WasSmartGuessed      bool       `json:"was_smart_guessed"`
	SmartGuessID         *int64     `json:"smart_guess_id,omitempty"`
}

// IsCurrent reports whether the slot is still ongoing
func (s TimeSlot) IsCurrent() bool {
	return s.EndTime == nil
}

// Duration returns the slot length. An ongoing slot is measured up to now,
// but never past the midnight that ends its start day.
func (s TimeSlot) Duration(now time.Time) time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	end := now
	if midnight := NextMidnight(s.StartTime); end.After(midnight) {
		end = midnight
	}
	if end.Before(s.StartTime) {
		return 0
	}
	return end.Sub(s.StartTime)
}

// StartOfDay returns midnight at the beginning of t's calendar day in t's location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextMidnight returns midnight at the end of t's calendar day in t's location
func NextMidnight(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// TimeSlotEventKind distinguishes the two change streams
type TimeSlotEventKind string

// TimeSlotEventKind constants
const (
	TimeSlotCreated TimeSlotEventKind = "created"
	TimeSlotUpdated TimeSlotEventKind = "updated"
)

// TimeSlotEvent carries a slot after it was created or updated
type TimeSlotEvent struct {
	Kind TimeSlotEventKind `json:"kind"`
	Slot TimeSlot          `json:"slot"`
}
