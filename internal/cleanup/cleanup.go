package cleanup

import (
	"errors"
	"fmt"
	"os"
	"time"

	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"
)

// SnapshotLister lists the export pairs on disk.
type SnapshotLister interface {
	List() ([]models.SnapshotInfo, error)
}

// Service prunes old export snapshots. The canonical Active and Sold tables
// are never touched.
type Service struct {
	snapshots SnapshotLister
	now       func() time.Time
}

// NewService creates a new cleanup service
func NewService(snapshots SnapshotLister) *Service {
	return &Service{snapshots: snapshots, now: time.Now}
}

// CleanupConfig holds configuration for cleanup operations
type CleanupConfig struct {
	RetentionDays    int  // Days of exports to keep; 0 disables pruning
	MaxDeletionCount int  // Abort when more snapshots than this would go
	DryRun           bool // Only log what would be deleted
}

// DefaultCleanupConfig returns default configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		RetentionDays:    0,
		MaxDeletionCount: 365,
		DryRun:           false,
	}
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	TargetCount      int       `json:"target_count"`
	DeletedCount     int       `json:"deleted_count"`
	ErrorCount       int       `json:"error_count"`
	DryRun           bool      `json:"dry_run"`
	ExecutedAt       time.Time `json:"executed_at"`
	DeletedSnapshots []string  `json:"deleted_snapshots"`
	Errors           []string  `json:"errors,omitempty"`
}

// FindExpiredSnapshots returns the pairs dated before the retention cutoff.
// The cutoff keeps exactly retentionDays calendar days, today included.
func (s *Service) FindExpiredSnapshots(retentionDays int) ([]models.SnapshotInfo, error) {
	infos, err := s.snapshots.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	now := s.now()
	y, m, d := now.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(retentionDays - 1))

	var expired []models.SnapshotInfo
	for _, info := range infos {
		if info.Date.Before(cutoff) {
			expired = append(expired, info)
		}
	}

	logging.Infof("[Cleanup] found %d snapshots dated before %s", len(expired), cutoff.Format("2006-01-02"))
	return expired, nil
}

// PruneSnapshots deletes expired export pairs
func (s *Service) PruneSnapshots(config CleanupConfig) (*CleanupResult, error) {
	result := &CleanupResult{
		DryRun:     config.DryRun,
		ExecutedAt: s.now(),
	}

	if config.RetentionDays <= 0 {
		logging.Infof("[Cleanup] export retention disabled, keeping every snapshot")
		return result, nil
	}

	expired, err := s.FindExpiredSnapshots(config.RetentionDays)
	if err != nil {
		return nil, err
	}

	result.TargetCount = len(expired)
	if result.TargetCount == 0 {
		return result, nil
	}

	// Safety check: abort if too many snapshots would be deleted
	if config.MaxDeletionCount > 0 && result.TargetCount > config.MaxDeletionCount {
		return nil, fmt.Errorf("safety check failed: %d snapshots exceed max deletion limit of %d",
			result.TargetCount, config.MaxDeletionCount)
	}

	logging.Infof("[Cleanup] starting: %d snapshots to delete (retention: %d days, dry-run: %v)",
		result.TargetCount, config.RetentionDays, config.DryRun)

	for _, info := range expired {
		key := info.DateKey()
		if config.DryRun {
			logging.Infof("[Cleanup] [DRY-RUN] would delete snapshot %s", key)
			result.DeletedSnapshots = append(result.DeletedSnapshots, key)
			result.DeletedCount++
			continue
		}

		var failed bool
		for _, path := range []string{info.ActivePath, info.SoldPath} {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errMsg := fmt.Sprintf("failed to delete %s: %v", path, err)
				logging.Errorf("[Cleanup] %s", errMsg)
				result.Errors = append(result.Errors, errMsg)
				failed = true
			}
		}
		if failed {
			result.ErrorCount++
			continue
		}

		logging.Infof("[Cleanup] deleted snapshot %s", key)
		result.DeletedSnapshots = append(result.DeletedSnapshots, key)
		result.DeletedCount++
	}

	logging.Infof("[Cleanup] completed: %d/%d deleted, %d errors (dry-run: %v)",
		result.DeletedCount, result.TargetCount, result.ErrorCount, config.DryRun)

	return result, nil
}
