package storage

import "time"

// Cycle statuses.
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

// CycleRecord is the persisted summary of one scraper iteration.
type CycleRecord struct {
	ID              string
	Exchange        string
	Status          string
	StartedAt       time.Time
	FinishedAt      time.Time
	Symbols         int
	Rows            int
	Dropped         int
	Published       []string
	FailedArtifacts []string
	Error           *string
	CreatedAt       time.Time
}

// Duration returns the wall time of the cycle.
func (c CycleRecord) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}
