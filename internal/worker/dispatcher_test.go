package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/jengzang/timeslots-backend-go/internal/config"
	"github.com/jengzang/timeslots-backend-go/internal/database"
	"github.com/jengzang/timeslots-backend-go/internal/logger"
	"github.com/jengzang/timeslots-backend-go/internal/models"
	"github.com/jengzang/timeslots-backend-go/internal/repository"
	"github.com/jengzang/timeslots-backend-go/internal/service"
)

var t0 = time.Date(2026, 4, 14, 8, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestDispatcher(t *testing.T) (*Dispatcher, *service.TimeSlotService) {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.FromZap(zaptest.NewLogger(t))
	clock := fixedClock{now: t0}
	settings := repository.NewSettingsRepository(db, time.UTC)
	slots := service.NewTimeSlotService(repository.NewTimeSlotRepository(db, time.UTC), clock, time.UTC, log)
	guesses := service.NewSmartGuessService(repository.NewSmartGuessRepository(db, time.UTC), settings, clock,
		config.DefaultSmartGuessConfig(), log)
	reminders := service.NewReminderService(repository.NewReminderRepository(db, time.UTC), clock)
	tracking := service.NewTrackingService(slots, guesses, settings, reminders, clock, config.DefaultTrackingConfig(), log)

	return NewDispatcher(tracking, guesses, 8, time.Hour, log), slots
}

func startDispatcher(t *testing.T, d *Dispatcher) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("dispatcher did not stop")
		}
	})
	return cancel
}

func TestDispatcherBootstrapsAndProcessesInOrder(t *testing.T) {
	d, slots := newTestDispatcher(t)
	startDispatcher(t, d)
	ctx := context.Background()

	fixes := []models.GeoPoint{
		{Latitude: 41.380, Longitude: 2.17, Timestamp: t0},
		{Latitude: 41.381, Longitude: 2.17, Timestamp: t0.Add(10 * time.Minute)},
	}
	if err := d.SubmitLocations(ctx, fixes); err != nil {
		t.Fatalf("SubmitLocations: %v", err)
	}

	// Do runs after the queued batch
	var last models.TimeSlot
	if err := d.Do(ctx, func() { last = slots.GetLast() }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !last.StartTime.Equal(t0) || last.Category != models.CategoryCommute {
		t.Errorf("current slot = %+v, want commute slot bootstrapped at T0", last)
	}
}

func TestDispatcherUserActions(t *testing.T) {
	d, _ := newTestDispatcher(t)
	startDispatcher(t, d)
	ctx := context.Background()

	slot, err := d.RecordUserCategoryChoice(ctx, t0, models.CategoryWork)
	if err != nil {
		t.Fatalf("RecordUserCategoryChoice: %v", err)
	}
	if slot == nil || slot.Category != models.CategoryWork || !slot.CategoryWasSetByUser {
		t.Errorf("slot = %+v, want user work slot", slot)
	}

	if slot, err = d.HandleNotificationCategory(ctx, models.CategoryFood); err != nil || slot == nil || slot.Category != models.CategoryFood {
		t.Errorf("HandleNotificationCategory = %+v, %v", slot, err)
	}
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if err := d.Submit(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit after stop = %v, want ErrStopped", err)
	}
}

func TestDispatcherRecoversFromPanics(t *testing.T) {
	d, _ := newTestDispatcher(t)
	startDispatcher(t, d)
	ctx := context.Background()

	if err := d.Submit(ctx, func() { panic("boom") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	ran := false
	if err := d.Do(ctx, func() { ran = true }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran {
		t.Error("job after panic did not run")
	}
}
