package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	bybit "github.com/bybit-exchange/bybit.go.api"
	"github.com/rs/zerolog"
)

const (
	bybitCategory       = "linear"
	bybitDefaultBaseURL = "https://api.bybit.com"
	bybitInstrumentsTTL = time.Hour
	bybitPageLimit      = 1000
)

var bybitIntervals = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"30m": "30",
	"1h":  "60",
	"4h":  "240",
	"1d":  "D",
}

// BybitOptions parameterise the Bybit v5 linear client.
type BybitOptions struct {
	BaseURL string
	Timeout time.Duration
}

// BybitClient reads public linear-perpetual market data from Bybit.
type BybitClient struct {
	client *bybit.Client
	logger zerolog.Logger

	mu          sync.Mutex
	instruments map[string]bybitInstrument
	order       []string
	fetchedAt   time.Time
}

// NewBybit constructs a Bybit client.
func NewBybit(opts BybitOptions, logger zerolog.Logger) *BybitClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = bybitDefaultBaseURL
	}

	client := bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(base))
	client.HTTPClient = &http.Client{Timeout: timeout}

	return &BybitClient{
		client: client,
		logger: logger.With().Str("component", "bybit_client").Logger(),
	}
}

// Name implements Client.
func (b *BybitClient) Name() string { return Bybit }

// FuturesSymbols lists trading linear perpetual contracts in listing order.
func (b *BybitClient) FuturesSymbols(ctx context.Context) ([]string, error) {
	if _, err := b.loadInstruments(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.order), nil
}

// FuturesPrices returns the last traded price per symbol.
func (b *BybitClient) FuturesPrices(ctx context.Context) (map[string]float64, error) {
	tickers, err := b.tickers(ctx, "")
	if err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		price, err := parseFloat("last price", t.LastPrice)
		if err != nil {
			return nil, err
		}
		prices[t.Symbol] = price
	}
	return prices, nil
}

// FuturesVolumes returns the 24h turnover (quote volume) per symbol.
func (b *BybitClient) FuturesVolumes(ctx context.Context) (map[string]float64, error) {
	tickers, err := b.tickers(ctx, "")
	if err != nil {
		return nil, err
	}
	volumes := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		vol, err := parseFloat("turnover", t.Turnover24h)
		if err != nil {
			return nil, err
		}
		volumes[t.Symbol] = vol
	}
	return volumes, nil
}

// FuturesKline fetches up to limit candles, oldest first.
func (b *BybitClient) FuturesKline(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	code, ok := bybitIntervals[interval]
	if !ok {
		return nil, validInterval(interval)
	}
	params := map[string]interface{}{
		"category": bybitCategory,
		"symbol":   symbol,
		"interval": code,
		"limit":    limit,
	}
	resp, err := b.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("bybit kline %s %s: %w", symbol, interval, err)
	}
	var result bybitKlineResult
	if err := decodeBybitResult(resp, &result); err != nil {
		return nil, fmt.Errorf("bybit kline %s %s: %w", symbol, interval, err)
	}
	return decodeBybitKlines(result.List)
}

// FundingRate returns the current funding rate as a decimal fraction.
func (b *BybitClient) FundingRate(ctx context.Context, symbol string) (float64, error) {
	tickers, err := b.tickers(ctx, symbol)
	if err != nil {
		return 0, err
	}
	for _, t := range tickers {
		if t.Symbol == symbol {
			return parseFloat("funding rate", t.FundingRate)
		}
	}
	return 0, fmt.Errorf("bybit tickers %s: symbol missing from response", symbol)
}

// SymbolInfo returns instrument metadata; only FieldMinOrderQty is supported.
func (b *BybitClient) SymbolInfo(ctx context.Context, symbol, field string) (float64, error) {
	if field != FieldMinOrderQty {
		return 0, fmt.Errorf("bybit symbol info: unsupported field %q", field)
	}
	instruments, err := b.loadInstruments(ctx)
	if err != nil {
		return 0, err
	}
	inst, ok := instruments[symbol]
	if !ok {
		return 0, fmt.Errorf("bybit symbol info: unknown symbol %s", symbol)
	}
	return parseFloat("min order qty", inst.LotSizeFilter.MinOrderQty)
}

func (b *BybitClient) tickers(ctx context.Context, symbol string) ([]bybitTicker, error) {
	params := map[string]interface{}{"category": bybitCategory}
	if symbol != "" {
		params["symbol"] = symbol
	}
	resp, err := b.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("bybit tickers: %w", err)
	}
	var result bybitTickerResult
	if err := decodeBybitResult(resp, &result); err != nil {
		return nil, fmt.Errorf("bybit tickers: %w", err)
	}
	return result.List, nil
}

func (b *BybitClient) loadInstruments(ctx context.Context) (map[string]bybitInstrument, error) {
	b.mu.Lock()
	if b.instruments != nil && time.Since(b.fetchedAt) < bybitInstrumentsTTL {
		cached := b.instruments
		b.mu.Unlock()
		return cached, nil
	}
	b.mu.Unlock()

	instruments := make(map[string]bybitInstrument)
	order := make([]string, 0)
	cursor := ""
	for {
		params := map[string]interface{}{
			"category": bybitCategory,
			"limit":    bybitPageLimit,
		}
		if cursor != "" {
			params["cursor"] = cursor
		}
		resp, err := b.client.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("bybit instruments: %w", err)
		}
		var page bybitInstrumentResult
		if err := decodeBybitResult(resp, &page); err != nil {
			return nil, fmt.Errorf("bybit instruments: %w", err)
		}
		for _, inst := range page.List {
			if inst.Status != "Trading" || inst.ContractType != "LinearPerpetual" {
				continue
			}
			if _, seen := instruments[inst.Symbol]; !seen {
				order = append(order, inst.Symbol)
			}
			instruments[inst.Symbol] = inst
		}
		if page.NextPageCursor == "" || page.NextPageCursor == cursor {
			break
		}
		cursor = page.NextPageCursor
	}

	b.mu.Lock()
	b.instruments = instruments
	b.order = order
	b.fetchedAt = time.Now()
	b.mu.Unlock()

	b.logger.Debug().Int("instruments", len(instruments)).Msg("refreshed instruments info")
	return instruments, nil
}

type bybitInstrument struct {
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	ContractType  string `json:"contractType"`
	QuoteCoin     string `json:"quoteCoin"`
	LotSizeFilter struct {
		MinOrderQty string `json:"minOrderQty"`
	} `json:"lotSizeFilter"`
}

type bybitInstrumentResult struct {
	List           []bybitInstrument `json:"list"`
	NextPageCursor string            `json:"nextPageCursor"`
}

type bybitTicker struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	Turnover24h string `json:"turnover24h"`
	FundingRate string `json:"fundingRate"`
}

type bybitTickerResult struct {
	List []bybitTicker `json:"list"`
}

type bybitKlineResult struct {
	Symbol string     `json:"symbol"`
	List   [][]string `json:"list"`
}

func decodeBybitResult(resp *bybit.ServerResponse, out any) error {
	if resp == nil {
		return fmt.Errorf("empty response")
	}
	if resp.RetCode != 0 {
		return fmt.Errorf("bybit api error (%d): %s", resp.RetCode, resp.RetMsg)
	}
	payload, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// decodeBybitKlines converts the newest-first string rows returned by the
// v5 kline endpoint into oldest-first candles.
func decodeBybitKlines(rows [][]string) ([]Candle, error) {
	candles := make([]Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			return nil, fmt.Errorf("kline row %d: expected at least 6 fields, got %d", i, len(row))
		}
		start, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("kline row %d start: %w", i, err)
		}
		values := make([]float64, 5)
		for j, name := range []string{"open", "high", "low", "close", "volume"} {
			v, err := parseFloat(name, row[j+1])
			if err != nil {
				return nil, fmt.Errorf("kline row %d: %w", i, err)
			}
			values[j] = v
		}
		candles = append(candles, Candle{
			OpenTime: time.UnixMilli(start).UTC(),
			Open:     values[0],
			High:     values[1],
			Low:      values[2],
			Close:    values[3],
			Volume:   values[4],
		})
	}
	return candles, nil
}

var _ Client = (*BybitClient)(nil)
