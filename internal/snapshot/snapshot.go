package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"car-market-tracker/internal/dataset"
	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"
	"car-market-tracker/internal/storage"
)

const (
	activePrefix = "active_"
	soldPrefix   = "sold_"
	fileExt      = ".csv"
	dateLayout   = "2006-01-02"
)

// ErrNoSnapshot is returned when no export pair exists inside the lookback window.
var ErrNoSnapshot = errors.New("no snapshot within lookback window")

// Snapshot is one dated export pair loaded into memory.
type Snapshot struct {
	Info   models.SnapshotInfo
	Active []models.Listing
	Sold   []models.SoldListing
}

// Service writes and reads dated exports of the tracker tables
type Service struct {
	dir string
}

// NewService creates a new snapshot service
func NewService(exportDir string) *Service {
	return &Service{dir: exportDir}
}

// Dir returns the export directory.
func (s *Service) Dir() string {
	return s.dir
}

func (s *Service) paths(date time.Time) (string, string) {
	key := date.Format(dateLayout)
	return filepath.Join(s.dir, activePrefix+key+fileExt), filepath.Join(s.dir, soldPrefix+key+fileExt)
}

// Export writes the pair for date's calendar day. A second export on the
// same day overwrites the first. Derived fields are recomputed and fully
// identical rows dropped before writing.
func (s *Service) Export(date time.Time, tables dataset.Tables) (*models.SnapshotInfo, error) {
	out := dataset.Tables{
		Active: append([]models.Listing(nil), tables.Active...),
		Sold:   append([]models.SoldListing(nil), tables.Sold...),
	}
	dataset.DeriveFields(&out)
	out = dataset.DropDuplicates(out)

	activePath, soldPath := s.paths(date)
	if err := storage.WriteTable(activePath, out.Active); err != nil {
		return nil, fmt.Errorf("export active snapshot: %w", err)
	}
	if err := storage.WriteTable(soldPath, out.Sold); err != nil {
		return nil, fmt.Errorf("export sold snapshot: %w", err)
	}

	info := &models.SnapshotInfo{
		Date:        truncateDay(date),
		ActivePath:  activePath,
		SoldPath:    soldPath,
		ActiveCount: len(out.Active),
		SoldCount:   len(out.Sold),
	}
	logging.Infof("[Snapshot] exported %s: %d active, %d sold", info.DateKey(), info.ActiveCount, info.SoldCount)
	return info, nil
}

// LoadLatest returns the newest complete pair dated within lookbackDays of
// now (today included), walking back one day at a time.
func (s *Service) LoadLatest(now time.Time, lookbackDays int) (*Snapshot, error) {
	day := truncateDay(now)
	for i := 0; i < lookbackDays; i++ {
		date := day.AddDate(0, 0, -i)
		activePath, soldPath := s.paths(date)
		if !fileExists(activePath) || !fileExists(soldPath) {
			continue
		}
		return s.load(date, activePath, soldPath)
	}
	return nil, fmt.Errorf("%w (%d days from %s)", ErrNoSnapshot, lookbackDays, day.Format(dateLayout))
}

// Load returns the pair for a specific day.
func (s *Service) Load(date time.Time) (*Snapshot, error) {
	activePath, soldPath := s.paths(date)
	if !fileExists(activePath) || !fileExists(soldPath) {
		return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, date.Format(dateLayout))
	}
	return s.load(truncateDay(date), activePath, soldPath)
}

func (s *Service) load(date time.Time, activePath, soldPath string) (*Snapshot, error) {
	active, err := storage.ReadTable[models.Listing](activePath)
	if err != nil {
		return nil, err
	}
	sold, err := storage.ReadTable[models.SoldListing](soldPath)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Info: models.SnapshotInfo{
			Date:        date,
			ActivePath:  activePath,
			SoldPath:    soldPath,
			ActiveCount: len(active),
			SoldCount:   len(sold),
		},
		Active: active,
		Sold:   sold,
	}, nil
}

// List returns the dates that have a complete export pair, newest first.
func (s *Service) List() ([]models.SnapshotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	var infos []models.SnapshotInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, activePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		date, err := time.Parse(dateLayout, strings.TrimSuffix(strings.TrimPrefix(name, activePrefix), fileExt))
		if err != nil {
			continue
		}
		activePath, soldPath := s.paths(date)
		if !fileExists(soldPath) {
			continue
		}
		infos = append(infos, models.SnapshotInfo{Date: date, ActivePath: activePath, SoldPath: soldPath})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Date.After(infos[j].Date) })
	return infos, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
