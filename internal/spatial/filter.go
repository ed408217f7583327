package spatial

import (
	"math"

	"github.com/jengzang/timeslots-backend-go/internal/models"
)

// MaxHorizontalAccuracy is the worst accuracy (meters) accepted for a fix
const MaxHorizontalAccuracy = 2000.0

// ValidFix reports whether a raw fix is usable by the tracking engine.
// Null island, out-of-range coordinates, missing timestamps and fixes
// with accuracy worse than MaxHorizontalAccuracy are rejected.
func ValidFix(p models.GeoPoint) bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	if p.Latitude == 0 && p.Longitude == 0 {
		return false
	}
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return false
	}
	if p.Timestamp.IsZero() {
		return false
	}
	// Negative accuracy means the platform could not compute one
	if p.HorizontalAccuracy < 0 || p.HorizontalAccuracy > MaxHorizontalAccuracy {
		return false
	}
	return true
}

// FilterFixes keeps valid fixes in their original order
func FilterFixes(points []models.GeoPoint) []models.GeoPoint {
	out := make([]models.GeoPoint, 0, len(points))
	for _, p := range points {
		if ValidFix(p) {
			out = append(out, p)
		}
	}
	return out
}
