package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quantscraper/internal/alerting"
	"quantscraper/internal/analysis"
	"quantscraper/internal/lock"
	"quantscraper/internal/publish"
	"quantscraper/internal/scheduler"
	"quantscraper/internal/storage"
	"quantscraper/internal/universe"
)

// Historical volume window published every cycle.
const (
	DefaultHistoryInterval = "1h"
	DefaultHistoryLimit    = 24
)

// UniverseBuilder produces the symbols of one cycle.
type UniverseBuilder interface {
	Build(ctx context.Context, filters universe.Filters) (universe.Universe, error)
}

// Analyzer turns a universe into an analysis table.
type Analyzer interface {
	AnalyzeAll(ctx context.Context, u universe.Universe) analysis.Result
}

// Publisher writes cycle artifacts.
type Publisher interface {
	PublishCycle(ctx context.Context, exchange string, t analysis.Table) []publish.Outcome
	PublishJSON(ctx context.Context, name string, value any) (publish.Artifact, error)
}

// VolumeHistory fetches historical volume series.
type VolumeHistory interface {
	VolumeFor(ctx context.Context, symbols []string, interval string, limit int) (map[string][]float64, error)
}

// TableHook receives every freshly analysed table, e.g. to build a combined view.
type TableHook interface {
	Accept(ctx context.Context, exchange string, t analysis.Table) []publish.Outcome
}

// Options tune a Scraper.
type Options struct {
	Exchange        string
	Filters         universe.Filters
	HistoryInterval string
	HistoryLimit    int
	// Retention prunes stored cycle reports older than this; zero keeps all.
	Retention time.Duration
}

// Deps are the collaborators of a Scraper. Locker, Store, Notifier, Hook and
// Scheduler are optional.
type Deps struct {
	Universe  UniverseBuilder
	Analyzer  Analyzer
	Publisher Publisher
	History   VolumeHistory
	Locker    lock.Locker
	Store     storage.CycleStore
	Notifier  alerting.Notifier
	Hook      TableHook
	Scheduler *scheduler.Scheduler
}

// Scraper runs the per-exchange cycle: lock, analyse, publish, sleep.
type Scraper struct {
	opts   Options
	deps   Deps
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scraper for one exchange.
func New(opts Options, deps Deps, logger zerolog.Logger) *Scraper {
	if opts.HistoryInterval == "" {
		opts.HistoryInterval = DefaultHistoryInterval
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if deps.Locker == nil {
		deps.Locker = lock.Noop{}
	}
	return &Scraper{
		opts: opts,
		deps: deps,
		logger: logger.With().
			Str("component", "scraper").
			Str("exchange", opts.Exchange).
			Logger(),
		now: time.Now,
	}
}

// Run loops until ctx is cancelled. Cycle failures never end the loop.
func (s *Scraper) Run(ctx context.Context) error {
	if s.deps.Scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.deps.Scheduler.Run(ctx, func(ctx context.Context, iteration int) error {
		s.RunOnce(ctx)
		return nil
	})
}

// RunOnce executes a single iteration and returns its report.
func (s *Scraper) RunOnce(ctx context.Context) CycleReport {
	report := CycleReport{
		ID:        uuid.NewString(),
		Exchange:  s.opts.Exchange,
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.With().Str("cycle_id", report.ID).Logger()

	unlock, acquired, err := s.deps.Locker.TryLock(ctx, s.opts.Exchange)
	switch {
	case err != nil:
		report.Status = storage.StatusFailed
		report.Err = fmt.Errorf("acquire lock: %w", err)
	case !acquired:
		report.Status = storage.StatusSkipped
		logger.Warn().Msg("skip iteration because another instance holds the lock")
	default:
		report.Err = s.cycle(ctx, &report, logger)
		unlock()
		report.Status = storage.StatusComplete
		if report.Err != nil {
			report.Status = storage.StatusFailed
		}
	}
	report.FinishedAt = s.now().UTC()

	s.finish(ctx, report, logger)
	return report
}

// cycle runs the pipeline; a panic anywhere in it becomes the returned error.
func (s *Scraper) cycle(ctx context.Context, report *CycleReport, logger zerolog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.Error().Str("stack", string(debug.Stack())).Msg("cycle panicked")
		}
	}()

	u, err := s.deps.Universe.Build(ctx, s.opts.Filters)
	if err != nil {
		return fmt.Errorf("build universe: %w", err)
	}
	report.Symbols = len(u.Symbols)

	result := s.deps.Analyzer.AnalyzeAll(ctx, u)
	report.Rows = len(result.Table)
	report.Dropped = result.Dropped
	if err := ctx.Err(); err != nil {
		return err
	}

	outcomes := s.deps.Publisher.PublishCycle(ctx, s.opts.Exchange, result.Table)
	if s.deps.Hook != nil {
		outcomes = append(outcomes, s.deps.Hook.Accept(ctx, s.opts.Exchange, result.Table)...)
	}
	report.record(outcomes)

	volumes, err := s.deps.History.VolumeFor(ctx, u.Symbols, s.opts.HistoryInterval, s.opts.HistoryLimit)
	if err != nil {
		return fmt.Errorf("historical volume: %w", err)
	}
	name := publish.ExchangeName(publish.HistoricalVolume, s.opts.Exchange)
	if _, err := s.deps.Publisher.PublishJSON(ctx, name, volumes); err != nil {
		report.FailedArtifacts = append(report.FailedArtifacts, name)
		return fmt.Errorf("publish %s: %w", name, err)
	}
	report.Published = append(report.Published, name)
	return nil
}

func (s *Scraper) finish(ctx context.Context, report CycleReport, logger zerolog.Logger) {
	event := logger.Info()
	switch {
	case report.Status == storage.StatusFailed:
		event = logger.Error().Err(report.Err)
	case report.Status == storage.StatusSkipped || len(report.FailedArtifacts) > 0:
		event = logger.Warn()
	}
	event.
		Str("status", report.Status).
		Int("symbols", report.Symbols).
		Int("rows", report.Rows).
		Int("dropped", len(report.Dropped)).
		Strs("failed_artifacts", report.FailedArtifacts).
		Dur("elapsed", report.Duration()).
		Msg("cycle finished")

	if errors.Is(report.Err, context.Canceled) {
		return
	}

	if s.deps.Store != nil {
		if err := s.deps.Store.InsertCycle(ctx, report.Record()); err != nil {
			logger.Error().Err(err).Msg("failed to persist cycle report")
		}
		if s.opts.Retention > 0 {
			cutoff := report.StartedAt.Add(-s.opts.Retention)
			if err := s.deps.Store.DeleteCyclesBefore(ctx, cutoff); err != nil {
				logger.Error().Err(err).Msg("failed to prune cycle reports")
			}
		}
	}

	if s.deps.Notifier != nil && report.NeedsAttention() {
		if err := s.deps.Notifier.Notify(ctx, report.Notification()); err != nil {
			logger.Error().Err(err).Msg("failed to dispatch alert")
		}
	}
}
