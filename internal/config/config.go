package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	Port        string
	DBPath      string
	JWTSecret   string
	AuthEnabled bool
	LogMode     string // dev, prod
	Timezone    *time.Location
	QueueSize   int // 写入队列长度
	RateLimit   int // 每分钟每 IP 请求数

	Tracking   TrackingConfig
	SmartGuess SmartGuessConfig
}

// TrackingConfig holds the segmentation thresholds
type TrackingConfig struct {
	MovementThresholdMeters float64       // Fixes closer than this to the last one are ignored
	CommuteWindow           time.Duration // Gaps shorter than this mean the user is moving
	ReminderDelay           time.Duration
	ReminderTitle           string
	ReminderBody            string
}

// SmartGuessConfig holds the smart guess thresholds
type SmartGuessConfig struct {
	DistanceThresholdMeters float64
	ErrorThreshold          int
	MaxAge                  time.Duration
	PurgeInterval           time.Duration
}

// DefaultTrackingConfig returns the tracking defaults
func DefaultTrackingConfig() TrackingConfig {
	return TrackingConfig{
		MovementThresholdMeters: 50,
		CommuteWindow:           25 * time.Minute,
		ReminderDelay:           10 * time.Minute,
		ReminderTitle:           "What have you been up to?",
		ReminderBody:            "Tap to tell us what you were doing.",
	}
}

// DefaultSmartGuessConfig returns the smart guess defaults
func DefaultSmartGuessConfig() SmartGuessConfig {
	return SmartGuessConfig{
		DistanceThresholdMeters: 100,
		ErrorThreshold:          3,
		MaxAge:                  30 * 24 * time.Hour,
		PurgeInterval:           24 * time.Hour,
	}
}

// Load 加载配置: 环境变量优先提供默认值, TOML 文件覆盖
func Load() (*Config, error) {
	cfg := &Config{
		Port:        envString("PORT", ":8080"),
		DBPath:      envString("DB_PATH", "./data/timeslots/timeslots.db"),
		JWTSecret:   envString("JWT_SECRET", "your-secret-key-change-in-production"),
		AuthEnabled: envBool("AUTH_ENABLED", false),
		LogMode:     envString("LOG_MODE", "dev"),
		Timezone:    time.Local,
		QueueSize:   envInt("QUEUE_SIZE", 256),
		RateLimit:   envInt("RATE_LIMIT", 600),
		Tracking:    DefaultTrackingConfig(),
		SmartGuess:  DefaultSmartGuessConfig(),
	}

	if tz := envString("TIMEZONE", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("failed to load timezone %q: %w", tz, err)
		}
		cfg.Timezone = loc
	}

	path := envString("CONFIG_PATH", DefaultConfigPath())
	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := file.Apply(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config file %s: %w", path, err)
	}

	return cfg, nil
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/timeslots/config.toml
func DefaultConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return filepath.Join(".", "config.toml")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "timeslots", "config.toml")
}

func envString(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
