package models

import "time"

// SnapshotInfo describes one dated export pair on disk
type SnapshotInfo struct {
	Date        time.Time `json:"date"`
	ActivePath  string    `json:"active_path"`
	SoldPath    string    `json:"sold_path"`
	ActiveCount int       `json:"active_count"`
	SoldCount   int       `json:"sold_count"`
}

// DateKey returns the YYYY-MM-DD key used in export file names.
func (s SnapshotInfo) DateKey() string {
	return s.Date.Format("2006-01-02")
}
