package exchange

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited throttles every call of the wrapped client through a shared token bucket.
type Limited struct {
	next    Client
	limiter *rate.Limiter
}

// NewLimited wraps client with a limiter allowing rps requests per second.
// A non-positive rps disables throttling.
func NewLimited(client Client, rps float64, burst int) *Limited {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{next: client, limiter: rate.NewLimiter(limit, burst)}
}

// Name implements Client.
func (l *Limited) Name() string { return l.next.Name() }

// FuturesSymbols implements Client.
func (l *Limited) FuturesSymbols(ctx context.Context) ([]string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.FuturesSymbols(ctx)
}

// FuturesPrices implements Client.
func (l *Limited) FuturesPrices(ctx context.Context) (map[string]float64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.FuturesPrices(ctx)
}

// FuturesVolumes implements Client.
func (l *Limited) FuturesVolumes(ctx context.Context) (map[string]float64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.FuturesVolumes(ctx)
}

// FuturesKline implements Client.
func (l *Limited) FuturesKline(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.FuturesKline(ctx, symbol, interval, limit)
}

// FundingRate implements Client.
func (l *Limited) FundingRate(ctx context.Context, symbol string) (float64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return l.next.FundingRate(ctx, symbol)
}

// SymbolInfo implements Client.
func (l *Limited) SymbolInfo(ctx context.Context, symbol, field string) (float64, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	return l.next.SymbolInfo(ctx, symbol, field)
}

var _ Client = (*Limited)(nil)
