package service

import (
	"time"

	"quantscraper/internal/alerting"
	"quantscraper/internal/publish"
	"quantscraper/internal/storage"
)

// CycleReport summarises one scraper iteration.
type CycleReport struct {
	ID              string
	Exchange        string
	Status          string
	StartedAt       time.Time
	FinishedAt      time.Time
	Symbols         int
	Rows            int
	Dropped         []string
	Published       []string
	FailedArtifacts []string
	Err             error
}

// Duration returns the wall time of the iteration.
func (r CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NeedsAttention reports whether the iteration failed or lost an artifact.
func (r CycleReport) NeedsAttention() bool {
	return r.Status == storage.StatusFailed || len(r.FailedArtifacts) > 0
}

func (r *CycleReport) record(outcomes []publish.Outcome) {
	for _, o := range outcomes {
		if o.Err != nil {
			r.FailedArtifacts = append(r.FailedArtifacts, o.Artifact.Name)
			continue
		}
		r.Published = append(r.Published, o.Artifact.Name)
	}
}

// Record converts the report into its persisted form.
func (r CycleReport) Record() storage.CycleRecord {
	rec := storage.CycleRecord{
		ID:              r.ID,
		Exchange:        r.Exchange,
		Status:          r.Status,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		Symbols:         r.Symbols,
		Rows:            r.Rows,
		Dropped:         len(r.Dropped),
		Published:       r.Published,
		FailedArtifacts: r.FailedArtifacts,
		CreatedAt:       r.FinishedAt,
	}
	if r.Err != nil {
		msg := r.Err.Error()
		rec.Error = &msg
	}
	return rec
}

// Notification converts the report into an alert.
func (r CycleReport) Notification() alerting.Notification {
	note := alerting.Notification{
		Exchange:        r.Exchange,
		CycleID:         r.ID,
		Status:          r.Status,
		StartedAt:       r.StartedAt,
		Duration:        r.Duration(),
		Symbols:         r.Symbols,
		Rows:            r.Rows,
		Dropped:         len(r.Dropped),
		FailedArtifacts: r.FailedArtifacts,
	}
	if r.Err != nil {
		note.Error = r.Err.Error()
	}
	return note
}
