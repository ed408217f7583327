package models

import "time"

// GeoPoint is a single timestamped location fix
type GeoPoint struct {
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Timestamp          time.Time `json:"timestamp"`
	HorizontalAccuracy float64   `json:"horizontal_accuracy,omitempty"` // Meters
	VerticalAccuracy   float64   `json:"vertical_accuracy,omitempty"`   // Meters
	Speed              float64   `json:"speed,omitempty"`               // m/s
	Course             float64   `json:"course,omitempty"`              // Degrees
}

// AppState is the foreground/background state reported by the host application
type AppState string

// AppState constants
const (
	AppStateActive   AppState = "active"
	AppStateInactive AppState = "inactive"
)
