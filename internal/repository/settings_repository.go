package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jengzang/timeslots-backend-go/internal/database"
	"github.com/jengzang/timeslots-backend-go/internal/models"
)

// Setting keys
const (
	SettingLastLocation          = "last_location"
	SettingLastLocationTimestamp = "last_location_timestamp"
	SettingInstallDate           = "install_date"
	SettingSmartGuessIDCounter   = "smart_guess_id_counter"
)

// SettingsRepository is a small key-value store for engine state
type SettingsRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *sql.DB, loc *time.Location) *SettingsRepository {
	if loc == nil {
		loc = time.Local
	}
	return &SettingsRepository{db: db, loc: loc}
}

// storedLocation is the JSON shape of the last location (timestamp is kept under its own key)
type storedLocation struct {
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	HorizontalAccuracy float64 `json:"horizontal_accuracy,omitempty"`
	VerticalAccuracy   float64 `json:"vertical_accuracy,omitempty"`
	Speed              float64 `json:"speed,omitempty"`
	Course             float64 `json:"course,omitempty"`
}

// LastLocation returns the last fix used for inference, or nil if none was stored
func (r *SettingsRepository) LastLocation() (*models.GeoPoint, error) {
	raw, ok, err := r.get(r.db, SettingLastLocation)
	if err != nil || !ok {
		return nil, err
	}
	ts, ok, err := r.get(r.db, SettingLastLocationTimestamp)
	if err != nil || !ok {
		return nil, err
	}

	var stored storedLocation
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("failed to decode last location: %w", err)
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode last location timestamp: %w", err)
	}

	return &models.GeoPoint{
		Latitude:           stored.Latitude,
		Longitude:          stored.Longitude,
		Timestamp:          time.Unix(sec, 0).In(r.loc),
		HorizontalAccuracy: stored.HorizontalAccuracy,
		VerticalAccuracy:   stored.VerticalAccuracy,
		Speed:              stored.Speed,
		Course:             stored.Course,
	}, nil
}

// SetLastLocation stores the fix and its timestamp atomically
func (r *SettingsRepository) SetLastLocation(p models.GeoPoint) error {
	raw, err := json.Marshal(storedLocation{
		Latitude:           p.Latitude,
		Longitude:          p.Longitude,
		HorizontalAccuracy: p.HorizontalAccuracy,
		VerticalAccuracy:   p.VerticalAccuracy,
		Speed:              p.Speed,
		Course:             p.Course,
	})
	if err != nil {
		return fmt.Errorf("failed to encode last location: %w", err)
	}
	return database.Transaction(r.db, func(tx *sql.Tx) error {
		if err := r.set(tx, SettingLastLocation, string(raw)); err != nil {
			return err
		}
		return r.set(tx, SettingLastLocationTimestamp, strconv.FormatInt(p.Timestamp.Unix(), 10))
	})
}

// InstallDate returns the stored install date, setting it to now on first use
func (r *SettingsRepository) InstallDate(now time.Time) (time.Time, error) {
	var installed time.Time
	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		raw, ok, err := r.get(tx, SettingInstallDate)
		if err != nil {
			return err
		}
		if ok {
			sec, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("failed to decode install date: %w", err)
			}
			installed = time.Unix(sec, 0).In(r.loc)
			return nil
		}
		installed = time.Unix(now.Unix(), 0).In(r.loc)
		return r.set(tx, SettingInstallDate, strconv.FormatInt(installed.Unix(), 10))
	})
	if err != nil {
		return time.Time{}, err
	}
	return installed, nil
}

// NextSmartGuessID increments and returns the smart guess id counter
func (r *SettingsRepository) NextSmartGuessID() (int64, error) {
	var next int64
	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		raw, ok, err := r.get(tx, SettingSmartGuessIDCounter)
		if err != nil {
			return err
		}
		if ok {
			current, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("failed to decode smart guess counter: %w", err)
			}
			next = current
		}
		next++
		return r.set(tx, SettingSmartGuessIDCounter, strconv.FormatInt(next, 10))
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

type rowQueryer interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (r *SettingsRepository) get(q rowQueryer, key string) (string, bool, error) {
	var value string
	err := q.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (r *SettingsRepository) set(e execer, key, value string) error {
	_, err := e.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}
