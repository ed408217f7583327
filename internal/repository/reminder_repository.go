package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/timeslots-backend-go/internal/models"
)

// ReminderRepository stores pending reminder notifications
type ReminderRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *sql.DB, loc *time.Location) *ReminderRepository {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderRepository{db: db, loc: loc}
}

// Insert stores a reminder and returns its id
func (r *ReminderRepository) Insert(rem models.Reminder) (int64, error) {
	res, err := r.db.Exec("INSERT INTO reminders (fire_at, title, body, created_at) VALUES (?, ?, ?, ?)",
		rem.FireAt.Unix(), rem.Title, rem.Body, rem.CreatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert reminder: %w", err)
	}
	return res.LastInsertId()
}

// DeleteAll removes every pending reminder
func (r *ReminderRepository) DeleteAll() error {
	if _, err := r.db.Exec("DELETE FROM reminders"); err != nil {
		return fmt.Errorf("failed to delete reminders: %w", err)
	}
	return nil
}

// List retrieves all reminders ordered by fire time
func (r *ReminderRepository) List() ([]models.Reminder, error) {
	rows, err := r.db.Query("SELECT id, fire_at, title, body, created_at FROM reminders ORDER BY fire_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		var rem models.Reminder
		var fireAt, createdAt int64
		if err := rows.Scan(&rem.ID, &fireAt, &rem.Title, &rem.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		rem.FireAt = time.Unix(fireAt, 0).In(r.loc)
		rem.CreatedAt = time.Unix(createdAt, 0).In(r.loc)
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}
