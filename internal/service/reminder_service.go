package service

import (
	"time"

	"github.com/jengzang/timeslots-backend-go/internal/models"
	"github.com/jengzang/timeslots-backend-go/internal/repository"
)

// ReminderService is a NotificationScheduler backed by the reminders table.
// The host application polls Pending and fires the local notifications.
type ReminderService struct {
	repo  *repository.ReminderRepository
	clock Clock
}

// NewReminderService creates a new reminder service
func NewReminderService(repo *repository.ReminderRepository, clock Clock) *ReminderService {
	return &ReminderService{repo: repo, clock: clock}
}

// Schedule stores a reminder firing at at
func (s *ReminderService) Schedule(at time.Time, title, body string) error {
	_, err := s.repo.Insert(models.Reminder{
		FireAt:    at,
		Title:     title,
		Body:      body,
		CreatedAt: s.clock.Now(),
	})
	return err
}

// CancelAll drops every pending reminder
func (s *ReminderService) CancelAll() error {
	return s.repo.DeleteAll()
}

// Pending lists the reminders that have not been cancelled
func (s *ReminderService) Pending() ([]models.Reminder, error) {
	return s.repo.List()
}
