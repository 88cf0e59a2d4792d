package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"quantscraper/internal/analysis"
	"quantscraper/internal/publish"
	"quantscraper/internal/retry"
	"quantscraper/internal/storage"
	"quantscraper/internal/universe"
)

// brokenSymbolAnalyzer fails every attempt for one symbol.
type brokenSymbolAnalyzer struct {
	broken string
}

func (b brokenSymbolAnalyzer) Analyze(_ context.Context, symbol string, price float64) (analysis.Record, error) {
	if symbol == b.broken {
		return analysis.Record{}, errors.New("klines 1m: upstream timeout")
	}
	return analysis.Record{Asset: symbol, Price: price, Volume1m: price * 10}, nil
}

func TestRunOncePublishesSurvivingSymbols(t *testing.T) {
	fs := afero.NewMemMapFs()
	publisher := publish.NewPublisher(publish.NewWriter(fs), publish.Options{
		DataDir: "data",
		Format:  publish.FormatJSON,
	}, nil, zerolog.Nop())

	pool := analysis.NewPool(brokenSymbolAnalyzer{broken: "AUSDT"}, analysis.PoolOptions{
		MaxWorkers: 1,
		Retry: retry.Policy{Attempts: 2, Sleep: func(context.Context, time.Duration) error {
			return nil
		}},
	}, zerolog.Nop())

	u := universe.Universe{
		Exchange: "binance",
		Symbols:  []string{"AUSDT", "BUSDT", "CUSDT", "DUSDT"},
		Prices:   map[string]float64{"AUSDT": 1, "BUSDT": 2, "CUSDT": 3, "DUSDT": 4},
	}
	store := &fakeStore{}
	s := New(Options{Exchange: "binance"}, Deps{
		Universe:  &fakeUniverse{u: u},
		Analyzer:  pool,
		Publisher: publisher,
		History:   &fakeHistory{},
		Store:     store,
	}, zerolog.Nop())

	report := s.RunOnce(context.Background())
	require.NoError(t, report.Err)
	require.Equal(t, storage.StatusComplete, report.Status)
	require.Equal(t, 3, report.Rows)
	require.Equal(t, []string{"AUSDT"}, report.Dropped)

	table, err := publish.ReadTable(fs, "data/quantdatav2_binance.json")
	require.NoError(t, err)
	require.Equal(t, []string{"DUSDT", "CUSDT", "BUSDT"}, table.Assets())
	require.Len(t, store.cycles, 1)
}
