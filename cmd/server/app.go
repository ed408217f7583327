package main

import (
	"database/sql"
	"fmt"

	"github.com/jengzang/timeslots-backend-go/internal/config"
	"github.com/jengzang/timeslots-backend-go/internal/database"
	"github.com/jengzang/timeslots-backend-go/internal/logger"
	"github.com/jengzang/timeslots-backend-go/internal/repository"
	"github.com/jengzang/timeslots-backend-go/internal/service"
	"github.com/jengzang/timeslots-backend-go/internal/worker"
)

// app holds the wired engine shared by every command
type app struct {
	cfg        *config.Config
	logger     *logger.Logger
	db         *sql.DB
	clock      service.Clock
	slots      *service.TimeSlotService
	guesses    *service.SmartGuessService
	reminders  *service.ReminderService
	tracking   *service.TrackingService
	dispatcher *worker.Dispatcher
}

func newApp() (*app, error) {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	// 初始化数据库
	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	loc := cfg.Timezone
	clock := service.SystemClock{Location: loc}
	settings := repository.NewSettingsRepository(db, loc)

	slots := service.NewTimeSlotService(repository.NewTimeSlotRepository(db, loc), clock, loc, log.With("component", "timeslots"))
	guesses := service.NewSmartGuessService(repository.NewSmartGuessRepository(db, loc), settings, clock,
		cfg.SmartGuess, log.With("component", "smartguess"))
	reminders := service.NewReminderService(repository.NewReminderRepository(db, loc), clock)
	tracking := service.NewTrackingService(slots, guesses, settings, reminders, clock, cfg.Tracking,
		log.With("component", "tracking"))
	dispatcher := worker.NewDispatcher(tracking, guesses, cfg.QueueSize, cfg.SmartGuess.PurgeInterval,
		log.With("component", "dispatcher"))

	return &app{
		cfg:        cfg,
		logger:     log,
		db:         db,
		clock:      clock,
		slots:      slots,
		guesses:    guesses,
		reminders:  reminders,
		tracking:   tracking,
		dispatcher: dispatcher,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
	a.logger.Sync()
}
