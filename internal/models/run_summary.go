package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the outcome of a crawl run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunSummary tracks the counters of one crawl run
type RunSummary struct {
	RunID      string     `gorm:"type:varchar(36);primaryKey" json:"run_id"`
	Status     RunStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	StartedAt  time.Time  `gorm:"type:datetime;not null;index" json:"started_at"`
	FinishedAt *time.Time `gorm:"type:datetime" json:"finished_at,omitempty"`
	Error      string     `gorm:"type:text" json:"error,omitempty"`

	LinksFound           int `gorm:"not null;default:0" json:"links_found"`
	NewLinks             int `gorm:"not null;default:0" json:"new_links"`
	AlreadySold          int `gorm:"not null;default:0" json:"already_sold"`
	SoldByAbsence        int `gorm:"not null;default:0" json:"sold_by_absence"`
	SoldByBadge          int `gorm:"not null;default:0" json:"sold_by_badge"`
	Parsed               int `gorm:"not null;default:0" json:"parsed"`
	NotACar              int `gorm:"not null;default:0" json:"not_a_car"`
	ParseFailures        int `gorm:"not null;default:0" json:"parse_failures"`
	FetchFailures        int `gorm:"not null;default:0" json:"fetch_failures"`
	NormalizationDefects int `gorm:"not null;default:0" json:"normalization_defects"`
	BatchesCommitted     int `gorm:"not null;default:0" json:"batches_committed"`
	ActiveTotal          int `gorm:"not null;default:0" json:"active_total"`
	SoldTotal            int `gorm:"not null;default:0" json:"sold_total"`
}

// TableName specifies the table name
func (RunSummary) TableName() string {
	return "crawl_runs"
}

// NewRunSummary starts a run with a fresh id.
func NewRunSummary(startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     uuid.NewString(),
		Status:    RunStatusRunning,
		StartedAt: startedAt,
	}
}

// Finish records the outcome of the run
func (r *RunSummary) Finish(at time.Time, err error) {
	r.FinishedAt = &at
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunStatusSucceeded
}

// Duration returns the elapsed run time, zero while running.
func (r *RunSummary) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
