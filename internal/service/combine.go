package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"quantscraper/internal/analysis"
	"quantscraper/internal/merge"
	"quantscraper/internal/publish"
)

// TablePublisher writes a whole table under a name.
type TablePublisher interface {
	PublishTable(ctx context.Context, name string, t analysis.Table) publish.Outcome
}

// Combiner keeps the latest table of two exchanges and publishes their merge
// once both are known. Primary wins on non-volume columns. A table that arrives
// while a merge is being published is picked up by that publisher before it
// returns, so callers never wait on another exchange's upload.
type Combiner struct {
	primary   string
	secondary string
	publisher TablePublisher
	logger    zerolog.Logger

	mu         sync.Mutex
	tables     map[string]analysis.Table
	publishing bool
	pending    bool
}

// CombinedName is the artifact written by a Combiner.
var CombinedName = publish.ExchangeName(publish.QuantData, publish.CombinedSuffix)

// NewCombiner constructs a Combiner.
func NewCombiner(primary, secondary string, publisher TablePublisher, logger zerolog.Logger) *Combiner {
	return &Combiner{
		primary:   primary,
		secondary: secondary,
		publisher: publisher,
		logger:    logger.With().Str("component", "combiner").Logger(),
		tables:    make(map[string]analysis.Table, 2),
	}
}

// Accept implements TableHook. Tables of other exchanges are ignored.
func (c *Combiner) Accept(ctx context.Context, exchange string, t analysis.Table) []publish.Outcome {
	if exchange != c.primary && exchange != c.secondary {
		return nil
	}

	c.mu.Lock()
	c.tables[exchange] = t
	_, okA := c.tables[c.primary]
	_, okB := c.tables[c.secondary]
	if !okA || !okB {
		c.mu.Unlock()
		c.logger.Debug().Str("exchange", exchange).Msg("waiting for the other exchange before combining")
		return nil
	}
	if c.publishing {
		c.pending = true
		c.mu.Unlock()
		c.logger.Debug().Str("exchange", exchange).Msg("combine in progress, queued latest table")
		return nil
	}
	c.publishing = true
	c.mu.Unlock()

	var outcomes []publish.Outcome
	for {
		c.mu.Lock()
		a, b := c.tables[c.primary], c.tables[c.secondary]
		c.pending = false
		c.mu.Unlock()

		out := c.publisher.PublishTable(ctx, CombinedName, merge.Merge(a, b))
		if out.Err == nil {
			c.logger.Info().Int("rows", out.Rows).Str("trigger", exchange).Msg("combined table published")
		}
		outcomes = append(outcomes, out)

		c.mu.Lock()
		if !c.pending {
			c.publishing = false
			c.mu.Unlock()
			return outcomes
		}
		c.mu.Unlock()
	}
}

var _ TableHook = (*Combiner)(nil)
