package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
// Every field is optional; nil means keep the default.
type FileConfig struct {
	Server     ServerFile     `toml:"server"`
	Tracking   TrackingFile   `toml:"tracking"`
	SmartGuess SmartGuessFile `toml:"smart_guess"`
}

// ServerFile maps the [server] table
type ServerFile struct {
	Port        *string `toml:"port"`
	DBPath      *string `toml:"db-path"`
	AuthEnabled *bool   `toml:"auth-enabled"`
	LogMode     *string `toml:"log-mode"`
	Timezone    *string `toml:"timezone"`
	QueueSize   *int    `toml:"queue-size"`
	RateLimit   *int    `toml:"rate-limit"`
}

// TrackingFile maps the [tracking] table
type TrackingFile struct {
	MovementThreshold *float64 `toml:"movement-threshold"`
	CommuteWindow     *string  `toml:"commute-window"`
	ReminderDelay     *string  `toml:"reminder-delay"`
	ReminderTitle     *string  `toml:"reminder-title"`
	ReminderBody      *string  `toml:"reminder-body"`
}

// SmartGuessFile maps the [smart_guess] table
type SmartGuessFile struct {
	DistanceThreshold *float64 `toml:"distance-threshold"`
	ErrorThreshold    *int     `toml:"error-threshold"`
	MaxAge            *string  `toml:"max-age"`
	PurgeInterval     *string  `toml:"purge-interval"`
}

// LoadFile reads a TOML config from the given path. Missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Apply overlays the values present in the file onto cfg
func (f FileConfig) Apply(cfg *Config) error {
	s := f.Server
	if s.Port != nil {
		cfg.Port = *s.Port
	}
	if s.DBPath != nil {
		cfg.DBPath = *s.DBPath
	}
	if s.AuthEnabled != nil {
		cfg.AuthEnabled = *s.AuthEnabled
	}
	if s.LogMode != nil {
		cfg.LogMode = *s.LogMode
	}
	if s.Timezone != nil {
		loc, err := time.LoadLocation(*s.Timezone)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
		cfg.Timezone = loc
	}
	if s.QueueSize != nil {
		cfg.QueueSize = *s.QueueSize
	}
	if s.RateLimit != nil {
		cfg.RateLimit = *s.RateLimit
	}

	t := f.Tracking
	if err := applyPositive(t.MovementThreshold, &cfg.Tracking.MovementThresholdMeters, "movement-threshold"); err != nil {
		return err
	}
	if err := applyDuration(t.CommuteWindow, &cfg.Tracking.CommuteWindow, "commute-window"); err != nil {
		return err
	}
	if err := applyDuration(t.ReminderDelay, &cfg.Tracking.ReminderDelay, "reminder-delay"); err != nil {
		return err
	}
	if t.ReminderTitle != nil {
		cfg.Tracking.ReminderTitle = *t.ReminderTitle
	}
	if t.ReminderBody != nil {
		cfg.Tracking.ReminderBody = *t.ReminderBody
	}

	g := f.SmartGuess
	if err := applyPositive(g.DistanceThreshold, &cfg.SmartGuess.DistanceThresholdMeters, "distance-threshold"); err != nil {
		return err
	}
	if err := applyPositive(g.ErrorThreshold, &cfg.SmartGuess.ErrorThreshold, "error-threshold"); err != nil {
		return err
	}
	if err := applyDuration(g.MaxAge, &cfg.SmartGuess.MaxAge, "max-age"); err != nil {
		return err
	}
	return applyDuration(g.PurgeInterval, &cfg.SmartGuess.PurgeInterval, "purge-interval")
}

func applyDuration(raw *string, dst *time.Duration, key string) error {
	if raw == nil {
		return nil
	}
	d, err := time.ParseDuration(*raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", key, *raw)
	}
	*dst = d
	return nil
}

func applyPositive[T int | float64](raw *T, dst *T, key string) error {
	if raw == nil {
		return nil
	}
	if *raw <= 0 {
		return fmt.Errorf("%s must be positive, got %v", key, *raw)
	}
	*dst = *raw
	return nil
}
