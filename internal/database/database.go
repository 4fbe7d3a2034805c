// Package database mirrors the tracker tables into an optional SQL database.
// The CSV tables stay canonical; a mirror is rewritten from them after each run.
package database

import (
	"context"
	"fmt"

	"car-market-tracker/internal/config"
	"car-market-tracker/internal/dataset"
	"car-market-tracker/internal/models"
)

// Mirror is a SQL copy of the Active and Sold tables plus the run history.
type Mirror interface {
	Name() string
	InitSchema() error
	Sync(ctx context.Context, t dataset.Tables) error
	SaveRun(ctx context.Context, run *models.RunSummary) error
	RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
	Close() error
}

// Open connects the mirror selected by cfg.Type and prepares its schema.
// It returns nil when no database is configured.
func Open(cfg config.DatabaseConfig) (Mirror, error) {
	var (
		m   Mirror
		err error
	)
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "mysql":
		m, err = NewGormMirror(cfg.MySQL)
	case "postgres":
		m, err = NewPostgresMirror(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Type, err)
	}
	if err := m.InitSchema(); err != nil {
		m.Close()
		return nil, fmt.Errorf("init %s schema: %w", cfg.Type, err)
	}
	return m, nil
}
