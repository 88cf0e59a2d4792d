package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBinanceKlinesOldestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/fapi/v1/klines") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Fatalf("symbol query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([][]any{
			{1700000000000, "10", "12", "9", "11", "100", 1700000059999, "1100", 5, "50", "550", "0"},
			{1700000060000, "11", "13", "10", "12", "200", 1700000119999, "2400", 7, "90", "1080", "0"},
		})
	}))
	defer srv.Close()

	client := NewBinance(BinanceOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	candles, err := client.FuturesKline(context.Background(), "BTCUSDT", "1m", 2)
	if err != nil {
		t.Fatalf("klines should succeed: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}
	if candles[0].Close != 11 || candles[1].Volume != 200 {
		t.Fatalf("unexpected candles: %+v", candles)
	}
	if !candles[0].OpenTime.Before(candles[1].OpenTime) {
		t.Fatal("candles must be ordered oldest first")
	}
}

func TestBinanceRejectsUnknownInterval(t *testing.T) {
	client := NewBinance(BinanceOptions{BaseURL: "http://127.0.0.1:1"}, noopLogger())
	if _, err := client.FuturesKline(context.Background(), "BTCUSDT", "7m", 5); err == nil {
		t.Fatal("unsupported interval should fail before any request")
	}
}

func TestBinanceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	client := NewBinance(BinanceOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := client.FuturesKline(context.Background(), "NOPE", "1m", 5); err == nil {
		t.Fatal("HTTP error should surface")
	}
}

func TestDecodeBybitKlinesReversesOrder(t *testing.T) {
	rows := [][]string{
		{"1700000120000", "3", "4", "2", "3.5", "30", "105"},
		{"1700000060000", "2", "3", "1", "2.5", "20", "50"},
		{"1700000000000", "1", "2", "0.5", "1.5", "10", "15"},
	}
	candles, err := decodeBybitKlines(rows)
	if err != nil {
		t.Fatalf("decode should succeed: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	if candles[0].Volume != 10 || candles[2].Volume != 30 {
		t.Fatalf("expected oldest first, got %+v", candles)
	}
}

func TestDecodeBybitKlinesShortRow(t *testing.T) {
	if _, err := decodeBybitKlines([][]string{{"1700000000000", "1"}}); err == nil {
		t.Fatal("short rows should be rejected")
	}
}

func TestParseFloat(t *testing.T) {
	v, err := parseFloat("price", " 0.0001 ")
	if err != nil || v != 0.0001 {
		t.Fatalf("parseFloat = %v, %v", v, err)
	}
	if v, err := parseFloat("price", ""); err != nil || v != 0 {
		t.Fatalf("empty value should parse as zero, got %v, %v", v, err)
	}
	if _, err := parseFloat("price", "abc"); err == nil {
		t.Fatal("garbage should fail")
	}
}

func TestVolumes(t *testing.T) {
	got := Volumes([]Candle{{Volume: 1}, {Volume: 2.5}})
	if len(got) != 2 || got[0] != 1 || got[1] != 2.5 {
		t.Fatalf("unexpected volumes %v", got)
	}
}

func TestLimitedDelegates(t *testing.T) {
	stub := &countingClient{}
	limited := NewLimited(stub, 0, 0)

	if limited.Name() != "stub" {
		t.Fatalf("name should be delegated, got %q", limited.Name())
	}
	if _, err := limited.FuturesKline(context.Background(), "BTCUSDT", "1m", 5); err != nil {
		t.Fatalf("kline should succeed: %v", err)
	}
	if _, err := limited.FundingRate(context.Background(), "BTCUSDT"); err != nil {
		t.Fatalf("funding should succeed: %v", err)
	}
	if got := stub.calls.Load(); got != 2 {
		t.Fatalf("expected 2 delegated calls, got %d", got)
	}
}

func TestLimitedHonoursCancelledContext(t *testing.T) {
	stub := &countingClient{}
	limited := NewLimited(stub, 0.001, 1)

	// drain the single burst token
	if _, err := limited.FuturesSymbols(context.Background()); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := limited.FuturesPrices(ctx); err == nil {
		t.Fatal("cancelled context should abort the wait")
	}
	if got := stub.calls.Load(); got != 1 {
		t.Fatalf("throttled call must not reach the client, calls=%d", got)
	}
}

type countingClient struct {
	calls atomic.Int32
}

func (c *countingClient) Name() string { return "stub" }

func (c *countingClient) FuturesSymbols(context.Context) ([]string, error) {
	c.calls.Add(1)
	return []string{"BTCUSDT"}, nil
}

func (c *countingClient) FuturesPrices(context.Context) (map[string]float64, error) {
	c.calls.Add(1)
	return map[string]float64{"BTCUSDT": 1}, nil
}

func (c *countingClient) FuturesVolumes(context.Context) (map[string]float64, error) {
	c.calls.Add(1)
	return map[string]float64{"BTCUSDT": 1}, nil
}

func (c *countingClient) FuturesKline(context.Context, string, string, int) ([]Candle, error) {
	c.calls.Add(1)
	return []Candle{{Close: 1}}, nil
}

func (c *countingClient) FundingRate(context.Context, string) (float64, error) {
	c.calls.Add(1)
	return 0.0001, nil
}

func (c *countingClient) SymbolInfo(context.Context, string, string) (float64, error) {
	c.calls.Add(1)
	return 0.001, nil
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}
