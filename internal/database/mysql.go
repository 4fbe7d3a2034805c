package database

import (
	"context"
	"fmt"
	"time"

	"car-market-tracker/internal/config"
	"car-market-tracker/internal/dataset"
	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	batchSize = 500
	idChunk   = 1000
)

// GormMirror keeps MySQL copies of the Active and Sold tables and the run history.
type GormMirror struct {
	db *gorm.DB
}

func mysqlDSN(cfg config.MySQLConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

func NewGormMirror(cfg config.MySQLConfig) (*GormMirror, error) {
	db, err := gorm.Open(mysql.Open(mysqlDSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormMirror{db: db}, nil
}

func (m *GormMirror) Name() string {
	return "mysql"
}

func (m *GormMirror) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (m *GormMirror) InitSchema() error {
	return m.db.AutoMigrate(
		&models.Listing{},
		&models.SoldListing{},
		&models.RunSummary{},
	)
}

// Sync upserts active rows, removes rows that moved to Sold and appends new
// sold rows. Existing sold rows are never updated.
func (m *GormMirror) Sync(ctx context.Context, t dataset.Tables) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(t.Active) > 0 {
			err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
				CreateInBatches(t.Active, batchSize).Error
			if err != nil {
				return fmt.Errorf("upsert active listings: %w", err)
			}
		}

		soldIDs := make([]int64, 0, len(t.Sold))
		for _, s := range t.Sold {
			soldIDs = append(soldIDs, s.PostID)
		}
		for start := 0; start < len(soldIDs); start += idChunk {
			end := min(start+idChunk, len(soldIDs))
			if err := tx.Where("post_id IN ?", soldIDs[start:end]).Delete(&models.Listing{}).Error; err != nil {
				return fmt.Errorf("delete sold from active: %w", err)
			}
		}

		if len(t.Sold) > 0 {
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(t.Sold, batchSize).Error
			if err != nil {
				return fmt.Errorf("insert sold listings: %w", err)
			}
		}

		logging.Infof("[MySQL] mirrored %d active and %d sold listings", len(t.Active), len(t.Sold))
		return nil
	})
}

// SaveRun inserts or updates a run summary.
func (m *GormMirror) SaveRun(ctx context.Context, run *models.RunSummary) error {
	return m.db.WithContext(ctx).Save(run).Error
}

// RecentRuns returns the latest run summaries, newest first.
func (m *GormMirror) RecentRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	var runs []models.RunSummary
	err := m.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
