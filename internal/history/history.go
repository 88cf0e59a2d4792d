// Package history collects recent per-symbol volume series.
package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"quantscraper/internal/exchange"
)

// DefaultWorkers bounds concurrent kline fetches when unset.
const DefaultWorkers = 20

// Aggregator fetches volume history with bounded parallelism. It does not retry.
type Aggregator struct {
	klines  exchange.KlineFetcher
	workers int
	logger  zerolog.Logger
}

// New constructs an Aggregator.
func New(klines exchange.KlineFetcher, workers int, logger zerolog.Logger) *Aggregator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Aggregator{
		klines:  klines,
		workers: workers,
		logger:  logger.With().Str("component", "history").Logger(),
	}
}

// VolumeFor returns, per symbol, the volumes of the last limit candles of
// interval, oldest first. The first fetch error aborts the call.
func (a *Aggregator) VolumeFor(ctx context.Context, symbols []string, interval string, limit int) (map[string][]float64, error) {
	var mu sync.Mutex
	out := make(map[string][]float64, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, symbol := range symbols {
		g.Go(func() error {
			candles, err := a.klines.FuturesKline(gctx, symbol, interval, limit)
			if err != nil {
				return fmt.Errorf("volume history %s: %w", symbol, err)
			}
			volumes := exchange.Volumes(candles)
			mu.Lock()
			out[symbol] = volumes
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.logger.Debug().Int("symbols", len(out)).Str("interval", interval).Int("limit", limit).Msg("volume history collected")
	return out, nil
}
