package exchange

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Supported exchange names.
const (
	Binance = "binance"
	Bybit   = "bybit"
)

// FieldMinOrderQty is the SymbolInfo field for the minimum order quantity.
const FieldMinOrderQty = "min_order_qty"

// Candle is one OHLCV bar. Sequences are ordered oldest to newest.
type Candle struct {
	OpenTime time.Time `json:"timestamp"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// MarketLister lists the tradable futures universe of an exchange.
type MarketLister interface {
	FuturesSymbols(ctx context.Context) ([]string, error)
	FuturesPrices(ctx context.Context) (map[string]float64, error)
	FuturesVolumes(ctx context.Context) (map[string]float64, error)
}

// KlineFetcher retrieves candle series.
type KlineFetcher interface {
	FuturesKline(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// FundingFetcher retrieves the current funding rate as a decimal fraction.
type FundingFetcher interface {
	FundingRate(ctx context.Context, symbol string) (float64, error)
}

// SymbolInfoFetcher retrieves static instrument metadata.
type SymbolInfoFetcher interface {
	SymbolInfo(ctx context.Context, symbol, field string) (float64, error)
}

// Client is the full exchange collaborator used by a scraper cycle.
type Client interface {
	Name() string
	MarketLister
	KlineFetcher
	FundingFetcher
	SymbolInfoFetcher
}

// Volumes extracts the volume column from a candle series.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

func parseFloat(field, value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return d.InexactFloat64(), nil
}

func validInterval(interval string) error {
	switch interval {
	case "1m", "5m", "30m", "1h", "4h", "1d":
		return nil
	default:
		return fmt.Errorf("unsupported kline interval %q", interval)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
