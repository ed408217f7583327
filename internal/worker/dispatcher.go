package worker

import (
	"context"
	"errors"
	"time"

	"github.com/jengzang/timeslots-backend-go/internal/logger"
	"github.com/jengzang/timeslots-backend-go/internal/models"
	"github.com/jengzang/timeslots-backend-go/internal/service"
)

// ErrStopped is returned when a job is submitted after the dispatcher stopped
var ErrStopped = errors.New("dispatcher stopped")

// Dispatcher serializes every mutation of the slot and guess stores onto
// one goroutine. Location fixes, app state changes and user actions are
// queued and applied one at a time, in submission order.
type Dispatcher struct {
	tracking      *service.TrackingService
	guesses       *service.SmartGuessService
	jobs          chan func()
	stopped       chan struct{}
	purgeInterval time.Duration
	logger        *logger.Logger
}

// NewDispatcher creates a dispatcher with a bounded queue.
// If queueSize is <= 0 it defaults to 256; a non-positive purgeInterval disables periodic purging.
func NewDispatcher(tracking *service.TrackingService, guesses *service.SmartGuessService, queueSize int, purgeInterval time.Duration, log *logger.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		tracking:      tracking,
		guesses:       guesses,
		jobs:          make(chan func(), queueSize),
		stopped:       make(chan struct{}),
		purgeInterval: purgeInterval,
		logger:        log,
	}
}

// Run bootstraps the engine and processes jobs until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.stopped)

	d.tracking.Start()
	d.guesses.Purge()

	var purge <-chan time.Time
	if d.purgeInterval > 0 {
		ticker := time.NewTicker(d.purgeInterval)
		defer ticker.Stop()
		purge = ticker.C
	}

	d.logger.Info("dispatcher started", "queue_size", cap(d.jobs), "purge_interval", d.purgeInterval)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping", "pending_jobs", len(d.jobs))
			return nil
		case job := <-d.jobs:
			d.runJob(job)
		case <-purge:
			d.runJob(d.guesses.Purge)
		}
	}
}

func (d *Dispatcher) runJob(job func()) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("dispatcher job panicked", "panic", p)
		}
	}()
	job()
}

// Submit queues fn without waiting for it to run
func (d *Dispatcher) Submit(ctx context.Context, fn func()) error {
	select {
	case <-d.stopped:
		return ErrStopped
	default:
	}
	select {
	case d.jobs <- fn:
		return nil
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do queues fn and waits until it has run
func (d *Dispatcher) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := d.Submit(ctx, func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-d.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitLocations queues a batch of fixes in order
func (d *Dispatcher) SubmitLocations(ctx context.Context, fixes []models.GeoPoint) error {
	if len(fixes) == 0 {
		return nil
	}
	batch := make([]models.GeoPoint, len(fixes))
	copy(batch, fixes)
	return d.Submit(ctx, func() {
		for _, fix := range batch {
			d.tracking.OnLocation(fix)
		}
	})
}

// SubmitAppState queues an app state transition
func (d *Dispatcher) SubmitAppState(ctx context.Context, state models.AppState) error {
	return d.Submit(ctx, func() {
		d.tracking.OnAppState(state)
	})
}

// RecordUserCategoryChoice applies a user choice on the writer and returns the slot
func (d *Dispatcher) RecordUserCategoryChoice(ctx context.Context, startTime time.Time, category models.Category) (*models.TimeSlot, error) {
	var slot *models.TimeSlot
	err := d.Do(ctx, func() {
		slot = d.tracking.RecordUserCategoryChoice(startTime, category)
	})
	return slot, err
}

// HandleNotificationCategory applies a notification answer on the writer
func (d *Dispatcher) HandleNotificationCategory(ctx context.Context, category models.Category) (*models.TimeSlot, error) {
	var slot *models.TimeSlot
	err := d.Do(ctx, func() {
		slot = d.tracking.HandleNotificationCategory(category)
	})
	return slot, err
}

// RecordNewManualSlot starts a user-defined slot on the writer
func (d *Dispatcher) RecordNewManualSlot(ctx context.Context, category models.Category) (*models.TimeSlot, error) {
	var (
		slot   *models.TimeSlot
		addErr error
	)
	if err := d.Do(ctx, func() {
		slot, addErr = d.tracking.RecordNewManualSlot(category)
	}); err != nil {
		return nil, err
	}
	return slot, addErr
}
