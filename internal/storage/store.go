package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"car-market-tracker/internal/dataset"
	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"
)

const (
	activeFile = "active.csv"
	soldFile   = "sold.csv"
	linksFile  = "links.csv"
)

// TableStore keeps the canonical Active, Sold and links tables in a directory.
type TableStore struct {
	dir     string
	lockTTL time.Duration
}

// NewTableStore creates a store rooted at dir.
func NewTableStore(dir string) *TableStore {
	return &TableStore{dir: dir}
}

// Dir returns the data directory.
func (s *TableStore) Dir() string {
	return s.dir
}

// Load reads both tables. Missing files are treated as empty tables.
func (s *TableStore) Load() (dataset.Tables, error) {
	active, err := ReadTable[models.Listing](filepath.Join(s.dir, activeFile))
	if err != nil {
		return dataset.Tables{}, fmt.Errorf("load active table: %w", err)
	}
	sold, err := ReadTable[models.SoldListing](filepath.Join(s.dir, soldFile))
	if err != nil {
		return dataset.Tables{}, fmt.Errorf("load sold table: %w", err)
	}
	logging.Infof("[Storage] loaded %d active and %d sold listings from %s", len(active), len(sold), s.dir)
	return dataset.Tables{Active: active, Sold: sold}, nil
}

// Save writes both tables, Sold first. A crash between the two writes can
// leave a row in both files; Merge drops it from Active on the next run.
func (s *TableStore) Save(t dataset.Tables) error {
	if err := WriteTable(filepath.Join(s.dir, soldFile), t.Sold); err != nil {
		return fmt.Errorf("save sold table: %w", err)
	}
	if err := WriteTable(filepath.Join(s.dir, activeFile), t.Active); err != nil {
		return fmt.Errorf("save active table: %w", err)
	}
	return nil
}

// SaveLinks overwrites the links table with the current index.
func (s *TableStore) SaveLinks(links []models.ListingLink) error {
	if err := WriteTable(filepath.Join(s.dir, linksFile), links); err != nil {
		return fmt.Errorf("save links table: %w", err)
	}
	return nil
}

// LoadLinks reads the links table written by the last run.
func (s *TableStore) LoadLinks() ([]models.ListingLink, error) {
	return ReadTable[models.ListingLink](filepath.Join(s.dir, linksFile))
}
