// Package universe builds the per-cycle list of symbols to analyse.
package universe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"quantscraper/internal/exchange"
)

// ErrNoSymbols is returned when no symbol survives the configured filters.
var ErrNoSymbols = errors.New("universe: no symbols left after filtering")

// Filters select the symbols of a universe. Zero values disable a filter.
type Filters struct {
	QuoteSymbols []string
	TopVolume    int
}

// Universe is the ordered set of symbols for one cycle plus the prices
// fetched alongside it.
type Universe struct {
	Exchange string
	Symbols  []string
	Prices   map[string]float64
}

// Price returns the price fetched for symbol.
func (u Universe) Price(symbol string) (float64, bool) {
	p, ok := u.Prices[symbol]
	return p, ok
}

// Builder assembles universes from an exchange.
type Builder struct {
	exchange string
	lister   exchange.MarketLister
	logger   zerolog.Logger
}

// NewBuilder constructs a Builder for the named exchange.
func NewBuilder(name string, lister exchange.MarketLister, logger zerolog.Logger) *Builder {
	return &Builder{
		exchange: name,
		lister:   lister,
		logger:   logger.With().Str("component", "universe").Str("exchange", name).Logger(),
	}
}

// Build fetches the market listing and applies the quote filter followed by
// the top-volume filter.
func (b *Builder) Build(ctx context.Context, filters Filters) (Universe, error) {
	symbols, err := b.lister.FuturesSymbols(ctx)
	if err != nil {
		return Universe{}, fmt.Errorf("list symbols: %w", err)
	}
	prices, err := b.lister.FuturesPrices(ctx)
	if err != nil {
		return Universe{}, fmt.Errorf("list prices: %w", err)
	}

	if len(filters.QuoteSymbols) > 0 {
		before := len(symbols)
		symbols = FilterQuote(symbols, filters.QuoteSymbols)
		b.logger.Info().Int("before", before).Int("after", len(symbols)).
			Strs("quote_symbols", filters.QuoteSymbols).
			Msg("applied quote filter")
	}

	if filters.TopVolume > 0 {
		volumes, err := b.lister.FuturesVolumes(ctx)
		if err != nil {
			return Universe{}, fmt.Errorf("list volumes: %w", err)
		}
		before := len(symbols)
		symbols = FilterTopVolume(symbols, volumes, filters.TopVolume)
		b.logger.Info().Int("before", before).Int("after", len(symbols)).
			Int("top_volume", filters.TopVolume).
			Msg("applied top volume filter")
	}

	if len(symbols) == 0 {
		return Universe{}, ErrNoSymbols
	}

	return Universe{Exchange: b.exchange, Symbols: symbols, Prices: prices}, nil
}

// FilterQuote keeps the symbols ending with one of the quote suffixes,
// preserving order. An empty suffix list keeps everything.
func FilterQuote(symbols, quotes []string) []string {
	if len(quotes) == 0 {
		return slices.Clone(symbols)
	}
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		for _, q := range quotes {
			if q != "" && strings.HasSuffix(s, q) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// FilterTopVolume ranks every symbol of volumes by descending volume, takes
// the first n and keeps the symbols of the input present in that set.
// Ties rank by position in symbols, then by name.
func FilterTopVolume(symbols []string, volumes map[string]float64, n int) []string {
	if n <= 0 {
		return slices.Clone(symbols)
	}

	position := make(map[string]int, len(symbols))
	for i, s := range symbols {
		position[s] = i
	}
	rank := func(s string) int {
		if p, ok := position[s]; ok {
			return p
		}
		return len(symbols)
	}

	ranked := make([]string, 0, len(volumes))
	for s := range volumes {
		ranked = append(ranked, s)
	}
	slices.SortFunc(ranked, func(a, b string) int {
		switch va, vb := volumes[a], volumes[b]; {
		case va > vb:
			return -1
		case va < vb:
			return 1
		}
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	top := make(map[string]struct{}, len(ranked))
	for _, s := range ranked {
		top[s] = struct{}{}
	}
	out := make([]string, 0, len(ranked))
	for _, s := range symbols {
		if _, ok := top[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
