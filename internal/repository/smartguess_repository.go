package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/timeslots-backend-go/internal/database"
	"github.com/jengzang/timeslots-backend-go/internal/models"
)

const smartGuessColumns = "id, category, latitude, longitude, error_count, last_used"

// SmartGuessRepository is a keyed collection of smart guesses
type SmartGuessRepository struct {
	db  *sql.DB
	loc *time.Location
}

// NewSmartGuessRepository creates a new smart guess repository
func NewSmartGuessRepository(db *sql.DB, loc *time.Location) *SmartGuessRepository {
	if loc == nil {
		loc = time.Local
	}
	return &SmartGuessRepository{db: db, loc: loc}
}

// Create inserts a new guess
func (r *SmartGuessRepository) Create(g models.SmartGuess) error {
	_, err := r.db.Exec(`INSERT INTO smart_guesses (`+smartGuessColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, string(g.Category), g.Latitude, g.Longitude, g.ErrorCount, g.LastUsed.Unix())
	if err != nil {
		return fmt.Errorf("failed to create smart guess: %w", err)
	}
	return nil
}

// GetAll retrieves the guesses matching filter ordered by id; nil matches all
func (r *SmartGuessRepository) GetAll(filter *models.SmartGuessFilter) ([]models.SmartGuess, error) {
	where, args := buildSmartGuessWhere(filter)
	return r.query(r.db, "SELECT "+smartGuessColumns+" FROM smart_guesses"+where+" ORDER BY id ASC", args...)
}

// GetLast retrieves the guess with the highest id, or nil when empty
func (r *SmartGuessRepository) GetLast() (*models.SmartGuess, error) {
	guesses, err := r.query(r.db, "SELECT "+smartGuessColumns+" FROM smart_guesses ORDER BY id DESC LIMIT 1")
	if err != nil {
		return nil, err
	}
	if len(guesses) == 0 {
		return nil, nil
	}
	return &guesses[0], nil
}

// UpdateWhere applies mutate to every matching guess and writes them back.
// It returns the number of guesses updated.
func (r *SmartGuessRepository) UpdateWhere(filter *models.SmartGuessFilter, mutate func(*models.SmartGuess)) (int, error) {
	updated := 0
	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		where, args := buildSmartGuessWhere(filter)
		guesses, err := r.query(tx, "SELECT "+smartGuessColumns+" FROM smart_guesses"+where, args...)
		if err != nil {
			return err
		}

		for i := range guesses {
			g := guesses[i]
			mutate(&g)
			_, err := tx.Exec(`UPDATE smart_guesses
				SET category = ?, latitude = ?, longitude = ?, error_count = ?, last_used = ?
				WHERE id = ?`,
				string(g.Category), g.Latitude, g.Longitude, g.ErrorCount, g.LastUsed.Unix(), guesses[i].ID)
			if err != nil {
				return fmt.Errorf("failed to update smart guess %d: %w", guesses[i].ID, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// DeleteWhere removes the matching guesses and returns how many were deleted
func (r *SmartGuessRepository) DeleteWhere(filter *models.SmartGuessFilter) (int64, error) {
	where, args := buildSmartGuessWhere(filter)
	res, err := r.db.Exec("DELETE FROM smart_guesses"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete smart guesses: %w", err)
	}
	return res.RowsAffected()
}

type queryer interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

func (r *SmartGuessRepository) query(q queryer, query string, args ...interface{}) ([]models.SmartGuess, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query smart guesses: %w", err)
	}
	defer rows.Close()

	var guesses []models.SmartGuess
	for rows.Next() {
		var g models.SmartGuess
		var category string
		var lastUsed int64
		if err := rows.Scan(&g.ID, &category, &g.Latitude, &g.Longitude, &g.ErrorCount, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan smart guess: %w", err)
		}
		g.Category = models.Category(category)
		g.LastUsed = time.Unix(lastUsed, 0).In(r.loc)
		guesses = append(guesses, g)
	}
	return guesses, rows.Err()
}

func buildSmartGuessWhere(filter *models.SmartGuessFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	if filter.ID != nil {
		conditions = append(conditions, "id = ?")
		args = append(args, *filter.ID)
	}
	if !filter.LastUsedFrom.IsZero() {
		conditions = append(conditions, "last_used >= ?")
		args = append(args, filter.LastUsedFrom.Unix())
	}
	if !filter.LastUsedBefore.IsZero() {
		conditions = append(conditions, "last_used < ?")
		args = append(args, filter.LastUsedBefore.Unix())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
