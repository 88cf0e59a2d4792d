package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"quantscraper/internal/analysis"
)

// Artifact base names. Per-exchange artifacts append "_<exchange>".
const (
	QuantData        = "quantdatav2"
	WhatToTrade      = "whattotrade"
	RotatorSymbols   = "rotatorsymbols"
	NegativeFunding  = "negativefunding"
	PositiveFunding  = "positivefunding"
	HistoricalVolume = "total_historical_volume"
	CombinedSuffix   = "combined"
)

// DefaultTradeableMinVolume is the 5m notional volume threshold of the
// tradeable and rotator views.
const DefaultTradeableMinVolume = 15000

// ExchangeName returns "<base>_<exchange>".
func ExchangeName(base, exchange string) string {
	return base + "_" + exchange
}

// Artifact is a named destination on disk.
type Artifact struct {
	Name string
	Path string
}

// Outcome reports the publication of one artifact.
type Outcome struct {
	Artifact Artifact
	Rows     int
	Err      error
}

// Options tune the publisher.
type Options struct {
	DataDir            string
	Format             Format
	TradeableMinVolume float64
	// LegacyExchange also gets unsuffixed copies of its full and rotator tables.
	LegacyExchange string
	MirrorTimeout  time.Duration
}

// Publisher encodes views and writes them atomically under DataDir.
type Publisher struct {
	writer  *Writer
	opts    Options
	mirrors []Mirror
	logger  zerolog.Logger
}

// NewPublisher constructs a Publisher.
func NewPublisher(w *Writer, opts Options, mirrors []Mirror, logger zerolog.Logger) *Publisher {
	if opts.Format == "" {
		opts.Format = FormatJSON
	}
	if opts.TradeableMinVolume <= 0 {
		opts.TradeableMinVolume = DefaultTradeableMinVolume
	}
	if opts.MirrorTimeout <= 0 {
		opts.MirrorTimeout = 30 * time.Second
	}
	return &Publisher{
		writer:  w,
		opts:    opts,
		mirrors: mirrors,
		logger:  logger.With().Str("component", "publisher").Logger(),
	}
}

// Artifact resolves name to a path in the configured format.
func (p *Publisher) Artifact(name string) Artifact {
	return p.artifact(name, p.opts.Format)
}

func (p *Publisher) artifact(name string, f Format) Artifact {
	return Artifact{Name: name, Path: filepath.Join(p.opts.DataDir, name+f.Ext())}
}

// Publish encodes v in the configured format and writes it to a.
func (p *Publisher) Publish(ctx context.Context, a Artifact, v analysis.View) error {
	body, err := Encode(p.opts.Format, v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", a.Name, err)
	}
	return p.write(ctx, a, p.opts.Format, body)
}

// PublishJSON writes value as JSON regardless of the configured format.
func (p *Publisher) PublishJSON(ctx context.Context, name string, value any) (Artifact, error) {
	a := p.artifact(name, FormatJSON)
	body, err := json.Marshal(value)
	if err != nil {
		return a, fmt.Errorf("encode %s: %w", name, err)
	}
	return a, p.write(ctx, a, FormatJSON, body)
}

// PublishTable writes the full table under name.
func (p *Publisher) PublishTable(ctx context.Context, name string, t analysis.Table) Outcome {
	a := p.Artifact(name)
	err := p.Publish(ctx, a, t.View())
	if err != nil {
		p.logger.Error().Err(err).Str("artifact", name).Msg("publish failed")
	}
	return Outcome{Artifact: a, Rows: len(t), Err: err}
}

func (p *Publisher) write(ctx context.Context, a Artifact, f Format, body []byte) error {
	if err := p.writer.WriteFile(a.Path, body); err != nil {
		return err
	}
	p.logger.Debug().Str("artifact", a.Name).Str("path", a.Path).Int("bytes", len(body)).Msg("artifact written")

	for _, m := range p.mirrors {
		mctx, cancel := context.WithTimeout(ctx, p.opts.MirrorTimeout)
		if err := m.Put(mctx, filepath.Base(a.Path), f.ContentType(), body); err != nil {
			p.logger.Warn().Err(err).Str("artifact", a.Name).Str("mirror", m.Name()).Msg("mirror upload failed")
		}
		cancel()
	}
	return nil
}

type viewJob struct {
	name  string
	build func() (analysis.View, error)
}

// PublishCycle writes every per-exchange artifact of t. Each artifact is
// independent: a failing one is logged and reported, the rest proceed.
func (p *Publisher) PublishCycle(ctx context.Context, exchange string, t analysis.Table) []Outcome {
	full := func() (analysis.View, error) { return t.View(), nil }
	tradeable := func() (analysis.View, error) {
		return analysis.Filter(t, analysis.ColVolume5m, analysis.OpGreater, p.opts.TradeableMinVolume)
	}
	rotator := func() (analysis.View, error) {
		v, err := tradeable()
		if err != nil {
			return analysis.View{}, err
		}
		return v.SortBy(
			analysis.SortKey{Column: analysis.ColVolume5m, Desc: true},
			analysis.SortKey{Column: analysis.ColSpread5m, Desc: true},
		)
	}
	funding := func(op string) func() (analysis.View, error) {
		return func() (analysis.View, error) {
			v, err := analysis.Filter(t, analysis.ColFunding, op, 0)
			if err != nil {
				return analysis.View{}, err
			}
			return v.Project(analysis.ColAsset, analysis.ColVolume1m, analysis.ColFunding)
		}
	}

	jobs := []viewJob{
		{ExchangeName(QuantData, exchange), full},
		{ExchangeName(WhatToTrade, exchange), tradeable},
		{ExchangeName(RotatorSymbols, exchange), rotator},
		{ExchangeName(NegativeFunding, exchange), funding(analysis.OpLess)},
		{ExchangeName(PositiveFunding, exchange), funding(analysis.OpGreater)},
	}
	if p.opts.LegacyExchange != "" && exchange == p.opts.LegacyExchange {
		jobs = append(jobs, viewJob{QuantData, full}, viewJob{RotatorSymbols, rotator})
	}

	outcomes := make([]Outcome, 0, len(jobs))
	for _, job := range jobs {
		a := p.Artifact(job.name)
		v, err := job.build()
		if err != nil {
			p.logger.Error().Err(err).Str("artifact", job.name).Msg("view skipped")
			outcomes = append(outcomes, Outcome{Artifact: a, Err: err})
			continue
		}
		if err := p.Publish(ctx, a, v); err != nil {
			p.logger.Error().Err(err).Str("artifact", job.name).Msg("publish failed")
			outcomes = append(outcomes, Outcome{Artifact: a, Rows: v.Len(), Err: err})
			continue
		}
		outcomes = append(outcomes, Outcome{Artifact: a, Rows: v.Len()})
	}
	return outcomes
}

// Failed returns the names of the artifacts that could not be published.
func Failed(outcomes []Outcome) []string {
	var names []string
	for _, o := range outcomes {
		if o.Err != nil {
			names = append(names, o.Artifact.Name)
		}
	}
	return names
}
