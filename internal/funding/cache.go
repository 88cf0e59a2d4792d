// Package funding caches per-symbol funding rates for a single exchange.
package funding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quantscraper/internal/exchange"
)

// DefaultTTL is the freshness window applied when Options.TTL is unset.
const DefaultTTL = 4 * time.Hour

// Options tune the cache.
type Options struct {
	TTL time.Duration
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

type entry struct {
	fetchedAt time.Time
	ratePct   float64
}

// Cache stores funding rates, expressed in percent, for at most TTL.
// The mutex is only held around map access, never across a fetch.
type Cache struct {
	fetcher exchange.FundingFetcher
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu      sync.Mutex
	entries map[string]entry
}

// New constructs a Cache backed by fetcher.
func New(fetcher exchange.FundingFetcher, opts Options, logger zerolog.Logger) *Cache {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
		now:     now,
		logger:  logger.With().Str("component", "funding_cache").Logger(),
		entries: make(map[string]entry),
	}
}

// Get returns the funding rate of symbol in percent, fetching it when the
// cached value is missing or stale. Fetch errors are not cached.
func (c *Cache) Get(ctx context.Context, symbol string) (float64, error) {
	now := c.now()

	c.mu.Lock()
	cached, ok := c.entries[symbol]
	c.mu.Unlock()
	if ok && now.Sub(cached.fetchedAt) < c.ttl {
		return cached.ratePct, nil
	}

	rate, err := c.fetcher.FundingRate(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("funding rate %s: %w", symbol, err)
	}
	pct := rate * 100

	c.mu.Lock()
	c.entries[symbol] = entry{fetchedAt: now, ratePct: pct}
	c.mu.Unlock()

	c.logger.Debug().Str("symbol", symbol).Float64("funding_pct", pct).Msg("funding rate refreshed")
	return pct, nil
}

// Len reports the number of cached symbols, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every cached entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}
