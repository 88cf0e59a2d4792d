package analysis

import (
	"context"
	"fmt"
	"time"

	"quantscraper/internal/exchange"
	"quantscraper/internal/indicator"
)

// Series requested per symbol.
const (
	trendBars  = 30
	trendSMA   = 14
	hmaWindow  = 14
	ma6Window  = 6
	oscBars    = 100
	eriSlow    = 64
	eriPower   = 13
	minuteBars = 240
)

// MarketData is the exchange surface the analyzer reads.
type MarketData interface {
	exchange.KlineFetcher
	exchange.SymbolInfoFetcher
}

// FundingSource returns funding rates in percent.
type FundingSource interface {
	Get(ctx context.Context, symbol string) (float64, error)
}

// SymbolAnalyzer produces one Record per symbol.
type SymbolAnalyzer interface {
	Analyze(ctx context.Context, symbol string, price float64) (Record, error)
}

// AnalyzerOptions tune the analyzer.
type AnalyzerOptions struct {
	// Lookback is the number of recent bars scanned for the MFI verdict.
	Lookback int
	Now      func() time.Time
}

// Analyzer fetches every series of a symbol once and derives all columns from them.
type Analyzer struct {
	market   MarketData
	funding  FundingSource
	lookback int
	now      func() time.Time
}

// NewAnalyzer constructs an Analyzer.
func NewAnalyzer(market MarketData, funding FundingSource, opts AnalyzerOptions) *Analyzer {
	if opts.Lookback <= 0 {
		opts.Lookback = indicator.DefaultLookback
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Analyzer{market: market, funding: funding, lookback: opts.Lookback, now: opts.Now}
}

type seriesSpec struct {
	interval string
	limit    int
}

var (
	series1h  = seriesSpec{"1h", 5}
	series30m = seriesSpec{"30m", 5}
	series5m  = seriesSpec{"5m", 20}
	series1m  = seriesSpec{"1m", minuteBars}
)

// Analyze computes the record of symbol priced at price.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, price float64) (Record, error) {
	minQty, err := a.market.SymbolInfo(ctx, symbol, exchange.FieldMinOrderQty)
	if err != nil {
		return Record{}, fmt.Errorf("symbol info: %w", err)
	}

	h1, err := a.series(ctx, symbol, series1h)
	if err != nil {
		return Record{}, err
	}
	m30, err := a.series(ctx, symbol, series30m)
	if err != nil {
		return Record{}, err
	}
	m5, err := a.series(ctx, symbol, series5m)
	if err != nil {
		return Record{}, err
	}
	m1, err := a.series(ctx, symbol, series1m)
	if err != nil {
		return Record{}, err
	}

	funding, err := a.funding.Get(ctx, symbol)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Asset:     symbol,
		MinQty:    indicator.Sanitize(minQty),
		Price:     indicator.Sanitize(price),
		Volume1m:  indicator.Notional(price, lastVolume(m1)),
		Volume5m:  indicator.Notional(price, lastVolume(m5)),
		Volume30m: indicator.Notional(price, lastVolume(m30)),
		Volume1h:  indicator.Notional(price, lastVolume(h1)),
		Spread1m:  indicator.Spread(indicator.Tail(m1, 1)),
		Spread5m:  indicator.Spread(indicator.Tail(m1, 5)),
		Spread30m: indicator.Spread(indicator.Tail(m1, 30)),
		Spread1h:  indicator.Spread(indicator.Tail(m1, 60)),
		Spread4h:  indicator.Spread(indicator.Tail(m1, 240)),
		Funding:   indicator.Sanitize(funding),
		Timestamp: a.now().UTC().Truncate(time.Second),
		MFI:       indicator.Verdict(indicator.Tail(m1, oscBars), a.lookback),
	}

	closes := indicator.Closes(indicator.Tail(m1, trendBars))
	lastClose, _ := indicator.Last(closes)
	if sma, ok := indicator.Last(indicator.SMA(closes, trendSMA)); ok {
		rec.TrendPct = indicator.OffsetPct(lastClose, sma)
	}
	rec.Trend = indicator.TrendLabel(rec.TrendPct)
	if hma, ok := indicator.Last(indicator.HMA(closes, hmaWindow)); ok {
		rec.HMATrendPct = indicator.OffsetPct(lastClose, hma)
	}
	rec.HMATrend = indicator.TrendLabel(rec.HMATrendPct)

	if v, ok := indicator.MeanLast(indicator.Highs(m5), ma6Window); ok {
		rec.MA6High5m = indicator.Sanitize(v)
	}
	if v, ok := indicator.MeanLast(indicator.Lows(m5), ma6Window); ok {
		rec.MA6Low5m = indicator.Sanitize(v)
	}

	rec.ERITrend = indicator.Bearish
	if eri, ok := indicator.ElderRay(m1, eriSlow, eriPower); ok {
		rec.ERIBullPower = eri.BullPower
		rec.ERIBearPower = eri.BearPower
		rec.ERITrend = eri.Trend
	}

	return rec, nil
}

func (a *Analyzer) series(ctx context.Context, symbol string, spec seriesSpec) ([]exchange.Candle, error) {
	candles, err := a.market.FuturesKline(ctx, symbol, spec.interval, spec.limit)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", spec.interval, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("klines %s: empty series", spec.interval)
	}
	return candles, nil
}

func lastVolume(candles []exchange.Candle) float64 {
	return candles[len(candles)-1].Volume
}

var _ SymbolAnalyzer = (*Analyzer)(nil)
