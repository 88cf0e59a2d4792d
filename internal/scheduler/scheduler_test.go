package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunSleepsAfterEveryIteration(t *testing.T) {
	s := New(Options{Interval: time.Minute, MaxIterations: 3}, zerolog.Nop())
	var slept []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	var seen []int
	err := s.Run(context.Background(), func(ctx context.Context, iteration int) error {
		seen = append(seen, iteration)
		if iteration == 2 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("bounded run should end cleanly: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("unexpected iterations %v", seen)
	}
	if len(slept) != 2 {
		t.Fatalf("expected a sleep between each of the 3 iterations, got %v", slept)
	}
	for _, d := range slept {
		if d != time.Minute {
			t.Fatalf("sleep should equal the interval, got %s", d)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, iteration int) error {
			calls++
			cancel()
			return nil
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected a single tick, got %d", calls)
	}
}

func TestStartupDelayHonoursCancel(t *testing.T) {
	s := New(Options{Interval: time.Second, StartupDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(ctx context.Context, iteration int) error {
		t.Fatal("tick must not run before the startup delay elapses")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	s := New(Options{}, zerolog.Nop())
	if s.Interval() != DefaultInterval {
		t.Fatalf("expected default interval, got %s", s.Interval())
	}
}
