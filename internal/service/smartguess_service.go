package service

import (
	"sort"
	"time"

	"github.com/jengzang/timeslots-backend-go/internal/config"
	"github.com/jengzang/timeslots-backend-go/internal/logger"
	"github.com/jengzang/timeslots-backend-go/internal/models"
	"github.com/jengzang/timeslots-backend-go/internal/spatial"
)

// SmartGuessService learns location→category associations and uses them
// to classify new slots
type SmartGuessService struct {
	store    SmartGuessStore
	settings SettingsStore
	clock    Clock
	cfg      config.SmartGuessConfig
	logger   *logger.Logger
}

// NewSmartGuessService creates a new smart guess service
func NewSmartGuessService(store SmartGuessStore, settings SettingsStore, clock Clock, cfg config.SmartGuessConfig, log *logger.Logger) *SmartGuessService {
	return &SmartGuessService{
		store:    store,
		settings: settings,
		clock:    clock,
		cfg:      cfg,
		logger:   log,
	}
}

// Add records that category was observed at location.
// Returns nil when the guess could not be stored.
func (s *SmartGuessService) Add(category models.Category, location models.GeoPoint) *models.SmartGuess {
	if !category.IsActive() {
		s.logger.Debug("not recording smart guess for inactive category", "category", category)
		return nil
	}

	id, err := s.settings.NextSmartGuessID()
	if err != nil {
		s.logger.Error("failed to allocate smart guess id", "error", err)
		return nil
	}

	guess := models.SmartGuess{
		ID:         id,
		Category:   category,
		Latitude:   location.Latitude,
		Longitude:  location.Longitude,
		ErrorCount: 0,
		LastUsed:   s.clock.Now(),
	}
	if err := s.store.Create(guess); err != nil {
		s.logger.Error("failed to persist smart guess", "id", id, "category", category, "error", err)
		return nil
	}

	s.logger.Debug("smart guess recorded", "id", id, "category", category)
	return &guess
}

// Strike penalizes a guess that produced a wrong category. Once it reaches
// the error threshold it is deleted.
func (s *SmartGuessService) Strike(id int64) {
	filter := models.SmartGuessByID(id)
	guesses, err := s.store.GetAll(filter)
	if err != nil {
		s.logger.Error("failed to load smart guess", "id", id, "error", err)
		return
	}
	if len(guesses) == 0 {
		s.logger.Warn("smart guess to strike no longer exists", "id", id)
		return
	}

	if guesses[0].ErrorCount+1 >= s.cfg.ErrorThreshold {
		if _, err := s.store.DeleteWhere(filter); err != nil {
			s.logger.Error("failed to delete smart guess", "id", id, "error", err)
			return
		}
		s.logger.Info("smart guess deleted after repeated errors", "id", id)
		return
	}

	if _, err := s.store.UpdateWhere(filter, func(g *models.SmartGuess) {
		g.ErrorCount++
	}); err != nil {
		s.logger.Error("failed to strike smart guess", "id", id, "error", err)
	}
}

type guessCandidate struct {
	guess    models.SmartGuess
	distance float64
}

// Get returns the best matching guess for location, or nil when no stored
// guess is within the distance threshold.
//
// Each candidate within the threshold votes for its category with weight
// ((threshold - d) / (threshold - minDistance))^2, so both proximity and the
// number of guesses count. The winning category returns its closest guess.
// Equal weights resolve to the lexically smallest category.
func (s *SmartGuessService) Get(location models.GeoPoint) *models.SmartGuess {
	guesses, err := s.store.GetAll(nil)
	if err != nil {
		s.logger.Error("failed to load smart guesses", "error", err)
		return nil
	}

	threshold := s.cfg.DistanceThresholdMeters
	var candidates []guessCandidate
	for _, g := range guesses {
		if !g.Category.IsActive() {
			continue
		}
		d := spatial.Distance(location, g.Location())
		if d <= threshold {
			candidates = append(candidates, guessCandidate{guess: g, distance: d})
		}
	}
	if len(candidates) == 0 {
		s.logger.Debug("no smart guess near location", "lat", location.Latitude, "lon", location.Longitude)
		return nil
	}

	minDistance := candidates[0].distance
	for _, c := range candidates[1:] {
		if c.distance < minDistance {
			minDistance = c.distance
		}
	}

	denominator := threshold - minDistance
	weights := make(map[models.Category]float64)
	closest := make(map[models.Category]guessCandidate)
	for _, c := range candidates {
		w := 1.0
		if denominator > 0 {
			ratio := (threshold - c.distance) / denominator
			w = ratio * ratio
		}
		weights[c.guess.Category] += w

		best, ok := closest[c.guess.Category]
		if !ok || c.distance < best.distance || (c.distance == best.distance && c.guess.ID < best.guess.ID) {
			closest[c.guess.Category] = c
		}
	}

	categories := make([]models.Category, 0, len(weights))
	for c := range weights {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	winner := categories[0]
	for _, c := range categories[1:] {
		if weights[c] > weights[winner] {
			winner = c
		}
	}

	result := closest[winner].guess
	now := s.clock.Now()
	if _, err := s.store.UpdateWhere(models.SmartGuessByID(result.ID), func(g *models.SmartGuess) {
		g.LastUsed = now
	}); err != nil {
		s.logger.Error("failed to refresh smart guess", "id", result.ID, "error", err)
	}
	result.LastUsed = now

	s.logger.Debug("smart guess matched", "id", result.ID, "category", winner,
		"weight", weights[winner], "candidates", len(candidates))
	return &result
}

// PurgeEntries deletes guesses last used in [installDate, maxAge)
func (s *SmartGuessService) PurgeEntries(maxAge time.Time) {
	installDate, err := s.settings.InstallDate(s.clock.Now())
	if err != nil {
		s.logger.Error("failed to read install date", "error", err)
		return
	}
	if !maxAge.After(installDate) {
		return
	}

	deleted, err := s.store.DeleteWhere(&models.SmartGuessFilter{
		LastUsedFrom:   installDate,
		LastUsedBefore: maxAge,
	})
	if err != nil {
		s.logger.Error("failed to purge smart guesses", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("purged stale smart guesses", "count", deleted, "older_than", maxAge)
	}
}

// Purge deletes guesses not used within the configured max age
func (s *SmartGuessService) Purge() {
	s.PurgeEntries(s.clock.Now().Add(-s.cfg.MaxAge))
}

// All returns every stored guess
func (s *SmartGuessService) All() []models.SmartGuess {
	guesses, err := s.store.GetAll(nil)
	if err != nil {
		s.logger.Error("failed to load smart guesses", "error", err)
		return nil
	}
	return guesses
}
