package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	chart "github.com/wcharczuk/go-chart/v2"

	"quantscraper/internal/analysis"
	"quantscraper/internal/publish"
)

// Export renders the top rows of a published table as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.Column == "" {
		opts.Column = analysis.ColVolume1m
	}
	opts.TopN = a.Config.ResolveTopN(opts.TopN)

	table, err := publish.ReadTable(a.fs, a.tablePath(opts.Exchange))
	if err != nil {
		return err
	}
	if len(table) == 0 {
		a.Logger.Info().Str("exchange", opts.Exchange).Msg("published table is empty; nothing to export")
		return nil
	}

	view, err := topView(table, opts.Column, opts.TopN)
	if err != nil {
		return err
	}
	a.Logger.Info().Int("total", len(table)).Int("exported", view.Len()).Str("column", opts.Column).Msg("exporting table")

	w := publish.NewWriter(a.fs)
	if opts.CSVPath != "" {
		body, err := publish.Encode(publish.FormatCSV, view)
		if err != nil {
			return err
		}
		if err := w.WriteFile(opts.CSVPath, body); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		var buf bytes.Buffer
		if err := renderBarChart(&buf, view, opts.Column); err != nil {
			return err
		}
		if err := w.WriteFile(opts.PNGPath, buf.Bytes()); err != nil {
			return err
		}
	}

	return nil
}

// tablePath returns the JSON quant table of exchange; "combined" selects the
// merged table.
func (a *App) tablePath(exchange string) string {
	return filepath.Join(a.Config.Publish.DataDir, publish.ExchangeName(publish.QuantData, exchange)+publish.FormatJSON.Ext())
}

func topView(t analysis.Table, column string, n int) (analysis.View, error) {
	col, err := analysis.Lookup(column)
	if err != nil {
		return analysis.View{}, err
	}
	if col.Kind != analysis.KindNumber {
		return analysis.View{}, fmt.Errorf("%w: %s is not numeric", analysis.ErrUnknownColumn, column)
	}
	v, err := t.View().SortBy(analysis.SortKey{Column: column, Desc: true})
	if err != nil {
		return analysis.View{}, err
	}
	if n > 0 && len(v.Records) > n {
		v.Records = v.Records[:n]
	}
	return v, nil
}

func renderBarChart(w io.Writer, v analysis.View, column string) error {
	col, err := analysis.Lookup(column)
	if err != nil {
		return err
	}
	if v.Len() == 0 {
		return errors.New("no rows to chart")
	}

	bars := make([]chart.Value, 0, v.Len())
	for _, r := range v.Records {
		value, _ := col.Number(r)
		bars = append(bars, chart.Value{Label: r.Asset, Value: value})
	}

	width := 1280
	barWidth := max(8, (width-160)/(2*len(bars)))
	graph := chart.BarChart{
		Title:      column,
		Width:      width,
		Height:     720,
		BarWidth:   barWidth,
		BarSpacing: barWidth,
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}
