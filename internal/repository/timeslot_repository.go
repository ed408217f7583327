package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/timeslots-backend-go/internal/database"
	"github.com/jengzang/timeslots-backend-go/internal/models"
)

const timeSlotColumns = `start_time, end_time, category, category_set_by_user, was_smart_guessed,
		smart_guess_id, latitude, longitude, location_time, horizontal_accuracy`

// TimeSlotRepository handles database operations for time slots
type TimeSlotRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewTimeSlotRepository creates a new time slot repository.
// Timestamps are returned in loc.
func NewTimeSlotRepository(db *sql.DB, loc *time.Location) *TimeSlotRepository {
	if loc == nil {
		loc = time.Local
	}
	return &TimeSlotRepository{db: db, loc: loc}
}

// Append inserts slot. When previous is non-nil its end time is written in
// the same transaction.
func (r *TimeSlotRepository) Append(slot models.TimeSlot, previous *models.TimeSlot) error {
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		if previous != nil && previous.EndTime != nil {
			_, err := tx.Exec("UPDATE time_slots SET end_time = ? WHERE start_time = ?",
				previous.EndTime.Unix(), previous.StartTime.Unix())
			if err != nil {
				return fmt.Errorf("failed to close time slot: %w", err)
			}
		}

		var lat, lon, acc sql.NullFloat64
		var locTime sql.NullInt64
		if slot.Location != nil {
			lat = sql.NullFloat64{Float64: slot.Location.Latitude, Valid: true}
			lon = sql.NullFloat64{Float64: slot.Location.Longitude, Valid: true}
			acc = sql.NullFloat64{Float64: slot.Location.HorizontalAccuracy, Valid: true}
			locTime = sql.NullInt64{Int64: slot.Location.Timestamp.Unix(), Valid: true}
		}
		var endTime, guessID sql.NullInt64
		if slot.EndTime != nil {
			endTime = sql.NullInt64{Int64: slot.EndTime.Unix(), Valid: true}
		}
		if slot.SmartGuessID != nil {
			guessID = sql.NullInt64{Int64: *slot.SmartGuessID, Valid: true}
		}

		_, err := tx.Exec(`INSERT INTO time_slots (`+timeSlotColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			slot.StartTime.Unix(), endTime, string(slot.Category),
			slot.CategoryWasSetByUser, slot.WasSmartGuessed,
			guessID, lat, lon, locTime, acc,
		)
		if err != nil {
			return fmt.Errorf("failed to insert time slot: %w", err)
		}
		return nil
	})
}

// UpdateCategory sets the category and the set-by-user flag of one slot
func (r *TimeSlotRepository) UpdateCategory(startTime time.Time, category models.Category, setByUser bool) error {
	res, err := r.db.Exec("UPDATE time_slots SET category = ?, category_set_by_user = ? WHERE start_time = ?",
		string(category), setByUser, startTime.Unix())
	if err != nil {
		return fmt.Errorf("failed to update time slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update time slot: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetLast retrieves the slot with the greatest start time, or nil when empty
func (r *TimeSlotRepository) GetLast() (*models.TimeSlot, error) {
	row := r.db.QueryRow("SELECT " + timeSlotColumns + " FROM time_slots ORDER BY start_time DESC LIMIT 1")
	slot, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last time slot: %w", err)
	}
	return slot, nil
}

// GetByStartTime retrieves a single slot by its key
func (r *TimeSlotRepository) GetByStartTime(startTime time.Time) (*models.TimeSlot, error) {
	row := r.db.QueryRow("SELECT "+timeSlotColumns+" FROM time_slots WHERE start_time = ?", startTime.Unix())
	slot, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time slot: %w", err)
	}
	return slot, nil
}

// GetBetween retrieves slots starting in [from, to), ordered by start time
func (r *TimeSlotRepository) GetBetween(from, to time.Time) ([]models.TimeSlot, error) {
	rows, err := r.db.Query("SELECT "+timeSlotColumns+` FROM time_slots
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time ASC`, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query time slots: %w", err)
	}
	defer rows.Close()

	var slots []models.TimeSlot
	for rows.Next() {
		slot, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time slot: %w", err)
		}
		slots = append(slots, *slot)
	}
	return slots, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *TimeSlotRepository) scan(row rowScanner) (*models.TimeSlot, error) {
	var (
		s             models.TimeSlot
		start         int64
		category      string
		end, guessID  sql.NullInt64
		lat, lon, acc sql.NullFloat64
		locTime       sql.NullInt64
	)
	err := row.Scan(&start, &end, &category, &s.CategoryWasSetByUser, &s.WasSmartGuessed,
		&guessID, &lat, &lon, &locTime, &acc)
	if err != nil {
		return nil, err
	}

	s.StartTime = time.Unix(start, 0).In(r.loc)
	s.Category = models.Category(category)
	if end.Valid {
		t := time.Unix(end.Int64, 0).In(r.loc)
		s.EndTime = &t
	}
	if guessID.Valid {
		id := guessID.Int64
		s.SmartGuessID = &id
	}
	if lat.Valid && lon.Valid {
		s.Location = &models.GeoPoint{
			Latitude:           lat.Float64,
			Longitude:          lon.Float64,
			HorizontalAccuracy: acc.Float64,
		}
		if locTime.Valid {
			s.Location.Timestamp = time.Unix(locTime.Int64, 0).In(r.loc)
		}
	}
	return &s, nil
}
