package models

import "time"

// SmartGuess is a remembered association between a location and a category
type SmartGuess struct {
	ID         int64     `json:"id" db:"id"`
	Category   Category  `json:"category" db:"category"`
	Latitude   float64   `json:"latitude" db:"latitude"`
	Longitude  float64   `json:"longitude" db:"longitude"`
	ErrorCount int       `json:"error_count" db:"error_count"`
	LastUsed   time.Time `json:"last_used" db:"last_used"`
}

// Location returns the guess position as a GeoPoint without a timestamp
func (g SmartGuess) Location() GeoPoint {
	return GeoPoint{Latitude: g.Latitude, Longitude: g.Longitude}
}

// SmartGuessFilter selects guesses by id or by a lastUsed range.
// Nil and zero fields are ignored; LastUsedFrom is inclusive and LastUsedBefore exclusive.
type SmartGuessFilter struct {
	ID             *int64
	LastUsedFrom   time.Time
	LastUsedBefore time.Time
}

// SmartGuessByID selects exactly the guess with id
func SmartGuessByID(id int64) *SmartGuessFilter {
	return &SmartGuessFilter{ID: &id}
}

// Reminder is a pending local notification asking the user what they are doing
type Reminder struct {
	ID        int64     `json:"id" db:"id"`
	FireAt    time.Time `json:"fire_at" db:"fire_at"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
