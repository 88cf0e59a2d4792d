package analysis

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"quantscraper/internal/retry"
	"quantscraper/internal/universe"
)

// DefaultMaxWorkers bounds per-cycle analysis concurrency when unset.
const DefaultMaxWorkers = 20

// PoolOptions tune the worker pool.
type PoolOptions struct {
	MaxWorkers int
	Retry      retry.Policy
}

// Pool analyses a universe with bounded parallelism. A symbol whose attempts
// are exhausted is dropped without affecting the others.
type Pool struct {
	analyzer SymbolAnalyzer
	opts     PoolOptions
	logger   zerolog.Logger
}

// Result is the outcome of one AnalyzeAll call.
type Result struct {
	Table   Table
	Dropped []string
}

type outcome struct {
	record Record
	ok     bool
}

// NewPool constructs a Pool.
func NewPool(analyzer SymbolAnalyzer, opts PoolOptions, logger zerolog.Logger) *Pool {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultMaxWorkers
	}
	return &Pool{
		analyzer: analyzer,
		opts:     opts,
		logger:   logger.With().Str("component", "analysis_pool").Logger(),
	}
}

// AnalyzeAll runs one task per symbol and returns the sorted table of the
// symbols that succeeded.
func (p *Pool) AnalyzeAll(ctx context.Context, u universe.Universe) Result {
	var (
		mu      sync.Mutex
		dropped []string
	)

	// tasks never return an error: conc drops results submitted after a
	// failed task, so failures are reported through ok instead
	workers := pool.NewWithResults[outcome]().
		WithContext(ctx).
		WithMaxGoroutines(p.opts.MaxWorkers)

	for _, symbol := range u.Symbols {
		workers.Go(func(ctx context.Context) (outcome, error) {
			rec, err := p.analyzeSymbol(ctx, u, symbol)
			if err != nil {
				p.logger.Error().Err(err).Str("symbol", symbol).Msg("symbol dropped from cycle")
				mu.Lock()
				dropped = append(dropped, symbol)
				mu.Unlock()
				return outcome{}, nil
			}
			return outcome{record: rec, ok: true}, nil
		})
	}

	outcomes, _ := workers.Wait()
	records := make([]Record, 0, len(outcomes))
	for _, o := range outcomes {
		if o.ok {
			records = append(records, o.record)
		}
	}

	table := NewTable(records)
	p.logger.Info().
		Int("symbols", len(u.Symbols)).
		Int("analysed", len(table)).
		Int("dropped", len(dropped)).
		Msg("analysis complete")

	return Result{Table: table, Dropped: dropped}
}

func (p *Pool) analyzeSymbol(ctx context.Context, u universe.Universe, symbol string) (Record, error) {
	attempt := 0
	return retry.Value(ctx, p.opts.Retry, func(ctx context.Context) (Record, error) {
		attempt++
		price, ok := u.Price(symbol)
		if !ok {
			return Record{}, fmt.Errorf("no price for %s", symbol)
		}
		rec, err := p.analyzer.Analyze(ctx, symbol, price)
		if err != nil {
			p.logger.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt).Msg("analysis attempt failed")
			return Record{}, err
		}
		return rec, nil
	})
}
