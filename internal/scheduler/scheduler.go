package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is the pause between two iterations.
const DefaultInterval = 60 * time.Second

// TickFunc is invoked once per iteration. iteration counts from 1.
type TickFunc func(ctx context.Context, iteration int) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// MaxIterations stops the loop after that many ticks; zero runs forever.
	MaxIterations int
}

// Scheduler drives a tick, sleep, tick loop with a fixed pause after every
// iteration regardless of its outcome.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval < 0 {
		panic("scheduler interval cannot be negative")
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		sleep:  wait,
	}
}

// Interval returns the effective pause between iterations.
func (s *Scheduler) Interval() time.Duration { return s.opts.Interval }

// Run blocks, invoking tick and then sleeping Interval, until ctx is cancelled.
// Tick errors are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := s.sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now()
		if err := tick(ctx, iteration); err != nil {
			s.logger.Error().Err(err).Int("iteration", iteration).Msg("tick execution failed")
		}
		s.logger.Debug().
			Int("iteration", iteration).
			Dur("elapsed", time.Since(started)).
			Dur("sleep", s.opts.Interval).
			Msg("iteration finished")

		if s.opts.MaxIterations > 0 && iteration >= s.opts.MaxIterations {
			return nil
		}
		if err := s.sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
