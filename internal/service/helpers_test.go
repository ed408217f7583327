package service

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/jengzang/timeslots-backend-go/internal/config"
	"github.com/jengzang/timeslots-backend-go/internal/database"
	"github.com/jengzang/timeslots-backend-go/internal/logger"
	"github.com/jengzang/timeslots-backend-go/internal/models"
	"github.com/jengzang/timeslots-backend-go/internal/repository"
)

var t0 = time.Date(2026, 4, 14, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type scheduledReminder struct {
	at          time.Time
	title, body string
}

type fakeNotifier struct {
	scheduled []scheduledReminder
	cancels   int
}

func (n *fakeNotifier) Schedule(at time.Time, title, body string) error {
	n.scheduled = append(n.scheduled, scheduledReminder{at: at, title: title, body: body})
	return nil
}

func (n *fakeNotifier) CancelAll() error {
	n.cancels++
	return nil
}

type testEnv struct {
	clock     *fakeClock
	notifier  *fakeNotifier
	slotRepo  *repository.TimeSlotRepository
	guessRepo *repository.SmartGuessRepository
	settings  *repository.SettingsRepository
	slots     *TimeSlotService
	guesses   *SmartGuessService
	tracking  *TrackingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.FromZap(zaptest.NewLogger(t))
	env := &testEnv{
		clock:     &fakeClock{now: t0},
		notifier:  &fakeNotifier{},
		slotRepo:  repository.NewTimeSlotRepository(db, time.UTC),
		guessRepo: repository.NewSmartGuessRepository(db, time.UTC),
		settings:  repository.NewSettingsRepository(db, time.UTC),
	}
	env.slots = NewTimeSlotService(env.slotRepo, env.clock, time.UTC, log)
	env.guesses = NewSmartGuessService(env.guessRepo, env.settings, env.clock, config.DefaultSmartGuessConfig(), log)
	env.tracking = NewTrackingService(env.slots, env.guesses, env.settings, env.notifier, env.clock,
		config.DefaultTrackingConfig(), log)
	return env
}

// fix builds a fix on the 2.17 meridian; 0.001 degrees of latitude is ~111 m
func fix(lat float64, ts time.Time) models.GeoPoint {
	return models.GeoPoint{Latitude: lat, Longitude: 2.17, Timestamp: ts, HorizontalAccuracy: 10}
}

func (e *testEnv) feed(p models.GeoPoint) {
	e.clock.now = p.Timestamp
	e.tracking.OnLocation(p)
}

func (e *testEnv) day(t *testing.T) []models.TimeSlot {
	t.Helper()
	return e.slots.GetForDay(t0)
}

func assertNoOverlap(t *testing.T, slots []models.TimeSlot) {
	t.Helper()
	current := 0
	for i, s := range slots {
		if s.EndTime == nil {
			current++
			continue
		}
		if s.EndTime.Before(s.StartTime) {
			t.Errorf("slot %d ends before it starts: %v < %v", i, *s.EndTime, s.StartTime)
		}
		if i+1 < len(slots) && s.EndTime.After(slots[i+1].StartTime) {
			t.Errorf("slot %d overlaps the next: ends %v, next starts %v", i, *s.EndTime, slots[i+1].StartTime)
		}
	}
	if current > 1 {
		t.Errorf("%d current slots, want at most 1", current)
	}
}
