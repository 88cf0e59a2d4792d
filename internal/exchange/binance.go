package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"
)

const binanceInstrumentsTTL = time.Hour

// BinanceOptions parameterise the Binance USDⓈ-M futures client.
type BinanceOptions struct {
	BaseURL string
	Timeout time.Duration
}

// BinanceClient reads public futures market data from Binance.
type BinanceClient struct {
	client *futures.Client
	logger zerolog.Logger

	mu          sync.Mutex
	instruments map[string]futures.Symbol
	fetchedAt   time.Time
}

// NewBinance constructs a Binance futures client.
func NewBinance(opts BinanceOptions, logger zerolog.Logger) *BinanceClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := futures.NewClient("", "")
	client.HTTPClient = &http.Client{Timeout: timeout}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		client.SetApiEndpoint(base)
	}

	return &BinanceClient{
		client: client,
		logger: logger.With().Str("component", "binance_client").Logger(),
	}
}

// Name implements Client.
func (b *BinanceClient) Name() string { return Binance }

// FuturesSymbols lists trading perpetual contracts.
func (b *BinanceClient) FuturesSymbols(ctx context.Context) ([]string, error) {
	instruments, err := b.loadInstruments(ctx)
	if err != nil {
		return nil, err
	}
	return sortedKeys(instruments), nil
}

// FuturesPrices returns the latest traded price per symbol.
func (b *BinanceClient) FuturesPrices(ctx context.Context) (map[string]float64, error) {
	res, err := b.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance list prices: %w", err)
	}
	prices := make(map[string]float64, len(res))
	for _, p := range res {
		price, err := parseFloat("price", p.Price)
		if err != nil {
			return nil, err
		}
		prices[p.Symbol] = price
	}
	return prices, nil
}

// FuturesVolumes returns the 24h quote volume per symbol.
func (b *BinanceClient) FuturesVolumes(ctx context.Context) (map[string]float64, error) {
	res, err := b.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance 24h stats: %w", err)
	}
	volumes := make(map[string]float64, len(res))
	for _, s := range res {
		vol, err := parseFloat("quote volume", s.QuoteVolume)
		if err != nil {
			return nil, err
		}
		volumes[s.Symbol] = vol
	}
	return volumes, nil
}

// FuturesKline fetches up to limit candles, oldest first.
func (b *BinanceClient) FuturesKline(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if err := validInterval(interval); err != nil {
		return nil, err
	}
	res, err := b.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
	}
	candles := make([]Candle, 0, len(res))
	for _, k := range res {
		c, err := binanceCandle(k)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// FundingRate returns the last funding rate as a decimal fraction.
func (b *BinanceClient) FundingRate(ctx context.Context, symbol string) (float64, error) {
	res, err := b.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance premium index %s: %w", symbol, err)
	}
	for _, idx := range res {
		if idx.Symbol == symbol {
			return parseFloat("funding rate", idx.LastFundingRate)
		}
	}
	return 0, fmt.Errorf("binance premium index %s: symbol missing from response", symbol)
}

// SymbolInfo returns instrument metadata; only FieldMinOrderQty is supported.
func (b *BinanceClient) SymbolInfo(ctx context.Context, symbol, field string) (float64, error) {
	if field != FieldMinOrderQty {
		return 0, fmt.Errorf("binance symbol info: unsupported field %q", field)
	}
	instruments, err := b.loadInstruments(ctx)
	if err != nil {
		return 0, err
	}
	inst, ok := instruments[symbol]
	if !ok {
		return 0, fmt.Errorf("binance symbol info: unknown symbol %s", symbol)
	}
	lot := inst.LotSizeFilter()
	if lot == nil {
		return 0, errors.New("binance symbol info: lot size filter missing")
	}
	return parseFloat("min qty", lot.MinQuantity)
}

func (b *BinanceClient) loadInstruments(ctx context.Context) (map[string]futures.Symbol, error) {
	b.mu.Lock()
	if b.instruments != nil && time.Since(b.fetchedAt) < binanceInstrumentsTTL {
		cached := b.instruments
		b.mu.Unlock()
		return cached, nil
	}
	b.mu.Unlock()

	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance exchange info: %w", err)
	}

	instruments := make(map[string]futures.Symbol, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.ContractType != futures.ContractTypePerpetual || s.Status != "TRADING" {
			continue
		}
		instruments[s.Symbol] = s
	}

	b.mu.Lock()
	b.instruments = instruments
	b.fetchedAt = time.Now()
	b.mu.Unlock()

	b.logger.Debug().Int("instruments", len(instruments)).Msg("refreshed exchange info")
	return instruments, nil
}

func binanceCandle(k *futures.Kline) (Candle, error) {
	open, err := parseFloat("open", k.Open)
	if err != nil {
		return Candle{}, err
	}
	high, err := parseFloat("high", k.High)
	if err != nil {
		return Candle{}, err
	}
	low, err := parseFloat("low", k.Low)
	if err != nil {
		return Candle{}, err
	}
	closing, err := parseFloat("close", k.Close)
	if err != nil {
		return Candle{}, err
	}
	volume, err := parseFloat("volume", k.Volume)
	if err != nil {
		return Candle{}, err
	}
	return Candle{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closing,
		Volume:   volume,
	}, nil
}

var _ Client = (*BinanceClient)(nil)
