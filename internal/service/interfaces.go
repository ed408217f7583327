package service

import (
	"time"

	"github.com/jengzang/timeslots-backend-go/internal/models"
)

// Clock returns the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time truncated to seconds
func (c SystemClock) Now() time.Time {
	now := time.Now().Truncate(time.Second)
	if c.Location != nil {
		return now.In(c.Location)
	}
	return now
}

// TimeSlotStore persists time slot records
type TimeSlotStore interface {
	Append(slot models.TimeSlot, previous *models.TimeSlot) error
	UpdateCategory(startTime time.Time, category models.Category, setByUser bool) error
	GetLast() (*models.TimeSlot, error)
	GetByStartTime(startTime time.Time) (*models.TimeSlot, error)
	GetBetween(from, to time.Time) ([]models.TimeSlot, error)
}

// SmartGuessStore is a keyed collection of smart guesses
type SmartGuessStore interface {
	Create(g models.SmartGuess) error
	GetAll(filter *models.SmartGuessFilter) ([]models.SmartGuess, error)
	UpdateWhere(filter *models.SmartGuessFilter, mutate func(*models.SmartGuess)) (int, error)
	DeleteWhere(filter *models.SmartGuessFilter) (int64, error)
	GetLast() (*models.SmartGuess, error)
}

// SettingsStore holds engine state shared across calls
type SettingsStore interface {
	LastLocation() (*models.GeoPoint, error)
	SetLastLocation(p models.GeoPoint) error
	InstallDate(now time.Time) (time.Time, error)
	NextSmartGuessID() (int64, error)
}

// NotificationScheduler schedules the "what are you doing" reminder
type NotificationScheduler interface {
	Schedule(at time.Time, title, body string) error
	CancelAll() error
}
