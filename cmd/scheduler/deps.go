package main

import (
	"fmt"
	"os"

	"github.com/capitalize-ai/scheduling-agent/internal/calendar"
	"github.com/capitalize-ai/scheduling-agent/internal/config"
	"github.com/capitalize-ai/scheduling-agent/internal/store"
	"github.com/capitalize-ai/scheduling-agent/internal/tools"
	"github.com/capitalize-ai/scheduling-agent/pkg/logger"
)

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(level, format string) (*logger.Logger, error) {
	log, err := logger.NewWithFormat(level, format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return nil, err
	}
	logger.SetGlobal(log)
	return log, nil
}

// openCalendar opens the event store and registers the calendar tools.
func openCalendar(cfg *config.Config, log *logger.Logger) (*store.DB, *calendar.Service, *tools.Registry, error) {
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	cal := calendar.NewService(store.NewEventStore(db),
		calendar.WithMaxCancelRange(cfg.MaxCancelRange()),
		calendar.WithLogger(log),
	)

	reg := tools.NewRegistry()
	if err := cal.RegisterTools(reg); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return db, cal, reg, nil
}
