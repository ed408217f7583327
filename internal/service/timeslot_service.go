package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jengzang/timeslots-backend-go/internal/logger"
	"github.com/jengzang/timeslots-backend-go/internal/models"
)

// TimeSlotService maintains the ordered, non-overlapping slot log and
// publishes created/updated events. Mutations must come from a single
// writer; subscribers are called synchronously on that writer.
type TimeSlotService struct {
	store  TimeSlotStore
	clock  Clock
	loc    *time.Location
	logger *logger.Logger

	mu          sync.Mutex
	nextSubID   int
	createdSubs map[int]func(models.TimeSlot)
	updatedSubs map[int]func(models.TimeSlot)
}

// NewTimeSlotService creates a new time slot service
func NewTimeSlotService(store TimeSlotStore, clock Clock, loc *time.Location, log *logger.Logger) *TimeSlotService {
	if loc == nil {
		loc = time.Local
	}
	return &TimeSlotService{
		store:       store,
		clock:       clock,
		loc:         loc,
		logger:      log,
		createdSubs: make(map[int]func(models.TimeSlot)),
		updatedSubs: make(map[int]func(models.TimeSlot)),
	}
}

// Add appends slot as the new current slot and closes the previous one.
// The previous slot is closed at slot.StartTime, or at the midnight ending
// its own day when that comes first.
func (s *TimeSlotService) Add(slot models.TimeSlot) error {
	slot.StartTime = slot.StartTime.Truncate(time.Second).In(s.loc)
	slot.EndTime = nil
	if slot.Category == "" {
		slot.Category = models.CategoryUnknown
	}

	last, err := s.store.GetLast()
	if err != nil {
		s.logger.Error("failed to load last time slot", "error", err)
		return err
	}

	var closed *models.TimeSlot
	if last != nil {
		if !slot.StartTime.After(last.StartTime) {
			s.logger.Error("refusing time slot that does not start after the last one",
				"start_time", slot.StartTime, "last_start_time", last.StartTime)
			return fmt.Errorf("%w: %s is not after %s", models.ErrInvalidDuration,
				slot.StartTime.Format(time.RFC3339), last.StartTime.Format(time.RFC3339))
		}
		if last.EndTime == nil {
			end := slot.StartTime
			if midnight := models.NextMidnight(last.StartTime); end.After(midnight) {
				end = midnight
			}
			prev := *last
			prev.EndTime = &end
			closed = &prev
		}
	}

	if err := s.store.Append(slot, closed); err != nil {
		s.logger.Error("failed to persist time slot", "start_time", slot.StartTime, "error", err)
		return err
	}

	if closed != nil {
		s.publish(models.TimeSlotUpdated, *closed)
	}
	s.publish(models.TimeSlotCreated, slot)
	s.logger.Debug("time slot created", "start_time", slot.StartTime, "category", slot.Category,
		"smart_guessed", slot.WasSmartGuessed)
	return nil
}

// Update changes the category of the slot starting at startTime.
// It returns the resulting slot, or nil when no such slot exists.
// Setting the category a slot already has changes nothing.
func (s *TimeSlotService) Update(startTime time.Time, category models.Category, setByUser bool) *models.TimeSlot {
	slot := s.Get(startTime)
	if slot == nil {
		s.logger.Warn("time slot to update no longer exists", "start_time", startTime)
		return nil
	}
	if slot.Category == category {
		return slot
	}

	if err := s.store.UpdateCategory(slot.StartTime, category, setByUser); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("time slot to update no longer exists", "start_time", startTime)
		} else {
			s.logger.Error("failed to update time slot", "start_time", startTime, "error", err)
		}
		return slot
	}

	slot.Category = category
	slot.CategoryWasSetByUser = setByUser
	s.publish(models.TimeSlotUpdated, *slot)
	return slot
}

// Get retrieves a slot by its start time; nil when missing
func (s *TimeSlotService) Get(startTime time.Time) *models.TimeSlot {
	slot, err := s.store.GetByStartTime(startTime.Truncate(time.Second))
	if err != nil {
		s.logger.Error("failed to load time slot", "start_time", startTime, "error", err)
		return nil
	}
	return slot
}

// GetLast returns the current slot. With an empty store it returns an
// unsaved unknown slot starting now.
func (s *TimeSlotService) GetLast() models.TimeSlot {
	last, err := s.store.GetLast()
	if err != nil {
		s.logger.Error("failed to load last time slot", "error", err)
	}
	if last == nil {
		return models.TimeSlot{StartTime: s.clock.Now().In(s.loc), Category: models.CategoryUnknown}
	}
	return *last
}

// IsEmpty reports whether no slot was ever stored
func (s *TimeSlotService) IsEmpty() bool {
	last, err := s.store.GetLast()
	if err != nil {
		s.logger.Error("failed to load last time slot", "error", err)
		return false
	}
	return last == nil
}

// GetForDay returns the slots starting on date's calendar day, ascending
func (s *TimeSlotService) GetForDay(date time.Time) []models.TimeSlot {
	from := models.StartOfDay(date.In(s.loc))
	slots, err := s.store.GetBetween(from, from.AddDate(0, 0, 1))
	if err != nil {
		s.logger.Error("failed to load time slots", "date", from.Format("2006-01-02"), "error", err)
		return nil
	}
	return slots
}

// GetCategorySummary totals the active slots of a day per category,
// in the fixed summary priority order. Categories without time are omitted.
func (s *TimeSlotService) GetCategorySummary(date time.Time) []models.CategorySummary {
	now := s.clock.Now()
	totals := make(map[models.Category]time.Duration)
	for _, slot := range s.GetForDay(date) {
		if !slot.Category.IsActive() {
			continue
		}
		totals[slot.Category] += slot.Duration(now)
	}

	var summary []models.CategorySummary
	for _, c := range models.ActiveCategories() {
		d, ok := totals[c]
		if !ok || d <= 0 {
			continue
		}
		summary = append(summary, models.CategorySummary{
			Category:        c,
			DurationSeconds: int64(d / time.Second),
			Color:           c.Info().Color,
		})
	}
	return summary
}

// OnCreated registers fn for created events and returns its unsubscribe func
func (s *TimeSlotService) OnCreated(fn func(models.TimeSlot)) func() {
	return s.subscribe(s.createdSubs, fn)
}

// OnUpdated registers fn for updated events and returns its unsubscribe func
func (s *TimeSlotService) OnUpdated(fn func(models.TimeSlot)) func() {
	return s.subscribe(s.updatedSubs, fn)
}

func (s *TimeSlotService) subscribe(subs map[int]func(models.TimeSlot), fn func(models.TimeSlot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(subs, id)
	}
}

func (s *TimeSlotService) publish(kind models.TimeSlotEventKind, slot models.TimeSlot) {
	subs := s.createdSubs
	if kind == models.TimeSlotUpdated {
		subs = s.updatedSubs
	}

	s.mu.Lock()
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(models.TimeSlot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, subs[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(slot)
	}
}
