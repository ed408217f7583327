package service

import (
	"fmt"
	"time"

	"github.com/jengzang/timeslots-backend-go/internal/config"
	"github.com/jengzang/timeslots-backend-go/internal/logger"
	"github.com/jengzang/timeslots-backend-go/internal/models"
	"github.com/jengzang/timeslots-backend-go/internal/spatial"
)

// TrackingService turns the stream of location fixes into time slots.
//
// It is not safe for concurrent use: every method must be called from the
// single writer sequence that owns the slot and guess stores.
type TrackingService struct {
	slots    *TimeSlotService
	guesses  *SmartGuessService
	settings SettingsStore
	notifier NotificationScheduler
	clock    Clock
	cfg      config.TrackingConfig
	logger   *logger.Logger

	inBackground bool
}

// NewTrackingService creates a tracking service. It starts in background mode.
func NewTrackingService(
	slots *TimeSlotService,
	guesses *SmartGuessService,
	settings SettingsStore,
	notifier NotificationScheduler,
	clock Clock,
	cfg config.TrackingConfig,
	log *logger.Logger,
) *TrackingService {
	return &TrackingService{
		slots:        slots,
		guesses:      guesses,
		settings:     settings,
		notifier:     notifier,
		clock:        clock,
		cfg:          cfg,
		logger:       log,
		inBackground: true,
	}
}

// Start records the install date and, on a fresh store, opens the first
// unknown slot at that date.
func (s *TrackingService) Start() {
	installDate, err := s.settings.InstallDate(s.clock.Now())
	if err != nil {
		s.logger.Error("failed to read install date", "error", err)
		return
	}
	if !s.slots.IsEmpty() {
		return
	}
	if err := s.slots.Add(models.TimeSlot{StartTime: installDate, Category: models.CategoryUnknown}); err != nil {
		s.logger.Error("failed to create initial time slot", "error", err)
	}
}

// InBackground reports whether fixes are currently used for inference
func (s *TrackingService) InBackground() bool {
	return s.inBackground
}

// OnAppState handles foreground/background transitions. Coming to the
// foreground closes a commute that has visibly ended.
func (s *TrackingService) OnAppState(state models.AppState) {
	switch state {
	case models.AppStateActive:
		s.inBackground = false
		s.TryStoppingCommuteRetroactively(s.clock.Now())
	case models.AppStateInactive:
		s.inBackground = true
	default:
		s.logger.Warn("ignoring unknown app state", "state", state)
	}
}

// OnLocation processes one fix
func (s *TrackingService) OnLocation(loc models.GeoPoint) {
	if !s.inBackground {
		return
	}
	loc.Timestamp = loc.Timestamp.Truncate(time.Second)

	previous, err := s.settings.LastLocation()
	if err != nil {
		s.logger.Error("failed to read last location", "error", err)
		return
	}
	if previous == nil {
		if err := s.settings.SetLastLocation(loc); err != nil {
			s.logger.Error("failed to store first location", "error", err)
		}
		return
	}

	if !loc.Timestamp.After(previous.Timestamp) {
		s.logger.Debug("ignoring out of order fix", "timestamp", loc.Timestamp, "last", previous.Timestamp)
		return
	}

	// Small movements leave the stored reference fix untouched
	if spatial.Distance(loc, *previous) <= s.cfg.MovementThresholdMeters {
		return
	}

	if err := s.settings.SetLastLocation(loc); err != nil {
		s.logger.Error("failed to store last location", "error", err)
		return
	}

	current := s.slots.GetLast()

	if s.isCommute(loc.Timestamp, previous.Timestamp) {
		if !current.CategoryWasSetByUser {
			s.slots.Update(current.StartTime, models.CategoryCommute, false)
		}
		s.scheduleReminder()
		return
	}

	if current.StartTime.Before(previous.Timestamp) {
		s.persistTimeSlot(*previous)
	}
	if s.persistTimeSlot(loc) == models.CategoryUnknown {
		s.scheduleReminder()
	}
}

// TryStoppingCommuteRetroactively closes a commute slot at the last fix
// once enough time has passed since that fix to know the user stopped.
func (s *TrackingService) TryStoppingCommuteRetroactively(at time.Time) {
	last, err := s.settings.LastLocation()
	if err != nil {
		s.logger.Error("failed to read last location", "error", err)
		return
	}
	if last == nil {
		return
	}

	current := s.slots.GetLast()
	if current.Category != models.CategoryCommute {
		return
	}
	// A slot already starting at the last fix has nothing left to close
	if !current.StartTime.Before(last.Timestamp) {
		return
	}
	if s.isCommute(at, last.Timestamp) {
		return
	}

	s.logger.Info("stopping commute retroactively", "commute_start", current.StartTime, "stopped_at", last.Timestamp)
	s.persistTimeSlot(*last)
}

// RecordUserCategoryChoice applies a category the user picked for the slot
// starting at startTime. Returns the updated slot, nil if it does not exist.
func (s *TrackingService) RecordUserCategoryChoice(startTime time.Time, category models.Category) *models.TimeSlot {
	slot := s.slots.Get(startTime)
	if slot == nil {
		s.logger.Warn("time slot for user choice no longer exists", "start_time", startTime)
		return nil
	}
	return s.applyUserCategory(*slot, category)
}

// HandleNotificationCategory applies a category chosen from the reminder
// notification to the current slot.
func (s *TrackingService) HandleNotificationCategory(category models.Category) *models.TimeSlot {
	s.TryStoppingCommuteRetroactively(s.clock.Now())
	if err := s.notifier.CancelAll(); err != nil {
		s.logger.Error("failed to cancel reminders", "error", err)
	}
	current := s.slots.Get(s.slots.GetLast().StartTime)
	if current == nil {
		s.logger.Warn("no current time slot for notification choice")
		return nil
	}
	return s.applyUserCategory(*current, category)
}

// RecordNewManualSlot starts a new slot now with a category chosen by the
// user. The last fix anchors the slot when it is recent. It fails with
// models.ErrInvalidDuration when now does not come after the current slot.
func (s *TrackingService) RecordNewManualSlot(category models.Category) (*models.TimeSlot, error) {
	now := s.clock.Now()
	slot := models.TimeSlot{
		StartTime:            now,
		Category:             category,
		CategoryWasSetByUser: true,
	}

	last, err := s.settings.LastLocation()
	if err != nil {
		s.logger.Error("failed to read last location", "error", err)
	}
	if last != nil && now.Sub(last.Timestamp) < s.cfg.CommuteWindow {
		slot.Location = last
	}

	if err := s.slots.Add(slot); err != nil {
		return nil, err
	}
	if slot.Location != nil {
		s.guesses.Add(category, *slot.Location)
	}
	created := s.slots.Get(now)
	if created == nil {
		return nil, fmt.Errorf("manual slot at %s: %w", now.Format(time.RFC3339), models.ErrNotFound)
	}
	return created, nil
}

func (s *TrackingService) applyUserCategory(slot models.TimeSlot, category models.Category) *models.TimeSlot {
	if slot.WasSmartGuessed && slot.SmartGuessID != nil && slot.Category != category {
		s.guesses.Strike(*slot.SmartGuessID)
	}
	if slot.Location != nil {
		s.guesses.Add(category, *slot.Location)
	}
	return s.slots.Update(slot.StartTime, category, true)
}

// persistTimeSlot opens a slot anchored at location, classified by the
// smart guess engine when possible, and returns its category. A classified
// slot also records a guess at location.
func (s *TrackingService) persistTimeSlot(location models.GeoPoint) models.Category {
	slot := models.TimeSlot{
		StartTime: location.Timestamp,
		Category:  models.CategoryUnknown,
		Location:  &location,
	}
	if guess := s.guesses.Get(location); guess != nil {
		id := guess.ID
		slot.Category = guess.Category
		slot.WasSmartGuessed = true
		slot.SmartGuessID = &id
	}

	if err := s.slots.Add(slot); err != nil {
		return models.CategoryUnknown
	}
	if slot.Category.IsActive() {
		s.guesses.Add(slot.Category, location)
	}
	return slot.Category
}

func (s *TrackingService) isCommute(t, previous time.Time) bool {
	return t.Sub(previous) < s.cfg.CommuteWindow
}

// scheduleReminder keeps at most one reminder pending
func (s *TrackingService) scheduleReminder() {
	if err := s.notifier.CancelAll(); err != nil {
		s.logger.Error("failed to cancel reminders", "error", err)
	}
	at := s.clock.Now().Add(s.cfg.ReminderDelay)
	if err := s.notifier.Schedule(at, s.cfg.ReminderTitle, s.cfg.ReminderBody); err != nil {
		s.logger.Error("failed to schedule reminder", "at", at, "error", err)
	}
}
