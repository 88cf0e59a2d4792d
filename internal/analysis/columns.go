package analysis

import (
	"errors"
	"fmt"
	"time"
)

// Column names as published.
const (
	ColAsset        = "Asset"
	ColMinQty       = "Min qty"
	ColPrice        = "Price"
	ColVolume1m     = "1m 1x Volume (USDT)"
	ColVolume5m     = "5m 1x Volume (USDT)"
	ColVolume30m    = "30m 1x Volume (USDT)"
	ColVolume1h     = "1h 1x Volume (USDT)"
	ColSpread1m     = "1m Spread"
	ColSpread5m     = "5m Spread"
	ColSpread30m    = "30m Spread"
	ColSpread1h     = "1h Spread"
	ColSpread4h     = "4h Spread"
	ColTrendPct     = "trend%"
	ColTrend        = "Trend"
	ColHMATrend     = "HMA Trend"
	ColHMATrendPct  = "hma_trend%"
	ColMA6High5m    = "5m MA6 high"
	ColMA6Low5m     = "5m MA6 low"
	ColFunding      = "Funding"
	ColTimestamp    = "Timestamp"
	ColMFI          = "MFI"
	ColERIBullPower = "ERI Bull Power"
	ColERIBearPower = "ERI Bear Power"
	ColERITrend     = "ERI Trend"
)

var (
	// ErrUnknownColumn is returned for column names outside the registry.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnsupportedOperator is returned for filter operators other than >, < and ==.
	ErrUnsupportedOperator = errors.New("unsupported operator")
)

// Kind is the value type of a column.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindTime
)

// Column describes one published field of a Record.
type Column struct {
	Name string
	// Key is a snake_case identifier for formats that cannot carry Name.
	Key  string
	Kind Kind

	str func(Record) string
	num func(Record) float64
	tm  func(Record) time.Time
}

// Value returns the field of r as string, float64, or an RFC 3339 UTC string.
func (c Column) Value(r Record) any {
	switch c.Kind {
	case KindNumber:
		return c.num(r)
	case KindTime:
		return c.tm(r).UTC().Format(time.RFC3339)
	default:
		return c.str(r)
	}
}

// Number returns the numeric field of r; ok is false for non-numeric columns.
func (c Column) Number(r Record) (float64, bool) {
	if c.Kind != KindNumber {
		return 0, false
	}
	return c.num(r), true
}

func (c Column) compare(a, b Record) int {
	switch c.Kind {
	case KindNumber:
		return cmpFloat(c.num(a), c.num(b))
	case KindTime:
		return c.tm(a).Compare(c.tm(b))
	default:
		sa, sb := c.str(a), c.str(b)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func strCol(name, key string, f func(Record) string) Column {
	return Column{Name: name, Key: key, Kind: KindString, str: f}
}

func numCol(name, key string, f func(Record) float64) Column {
	return Column{Name: name, Key: key, Kind: KindNumber, num: f}
}

var columns = []Column{
	strCol(ColAsset, "asset", func(r Record) string { return r.Asset }),
	numCol(ColMinQty, "min_qty", func(r Record) float64 { return r.MinQty }),
	numCol(ColPrice, "price", func(r Record) float64 { return r.Price }),
	numCol(ColVolume1m, "volume_1m_usdt", func(r Record) float64 { return r.Volume1m }),
	numCol(ColVolume5m, "volume_5m_usdt", func(r Record) float64 { return r.Volume5m }),
	numCol(ColVolume30m, "volume_30m_usdt", func(r Record) float64 { return r.Volume30m }),
	numCol(ColVolume1h, "volume_1h_usdt", func(r Record) float64 { return r.Volume1h }),
	numCol(ColSpread1m, "spread_1m", func(r Record) float64 { return r.Spread1m }),
	numCol(ColSpread5m, "spread_5m", func(r Record) float64 { return r.Spread5m }),
	numCol(ColSpread30m, "spread_30m", func(r Record) float64 { return r.Spread30m }),
	numCol(ColSpread1h, "spread_1h", func(r Record) float64 { return r.Spread1h }),
	numCol(ColSpread4h, "spread_4h", func(r Record) float64 { return r.Spread4h }),
	numCol(ColTrendPct, "trend_pct", func(r Record) float64 { return r.TrendPct }),
	strCol(ColTrend, "trend", func(r Record) string { return r.Trend }),
	strCol(ColHMATrend, "hma_trend", func(r Record) string { return r.HMATrend }),
	numCol(ColHMATrendPct, "hma_trend_pct", func(r Record) float64 { return r.HMATrendPct }),
	numCol(ColMA6High5m, "ma6_high_5m", func(r Record) float64 { return r.MA6High5m }),
	numCol(ColMA6Low5m, "ma6_low_5m", func(r Record) float64 { return r.MA6Low5m }),
	numCol(ColFunding, "funding", func(r Record) float64 { return r.Funding }),
	{Name: ColTimestamp, Key: "timestamp", Kind: KindTime, tm: func(r Record) time.Time { return r.Timestamp }},
	strCol(ColMFI, "mfi", func(r Record) string { return r.MFI }),
	numCol(ColERIBullPower, "eri_bull_power", func(r Record) float64 { return r.ERIBullPower }),
	numCol(ColERIBearPower, "eri_bear_power", func(r Record) float64 { return r.ERIBearPower }),
	strCol(ColERITrend, "eri_trend", func(r Record) string { return r.ERITrend }),
}

var columnIndex = func() map[string]Column {
	idx := make(map[string]Column, len(columns))
	for _, c := range columns {
		idx[c.Name] = c
	}
	return idx
}()

// Columns returns every column in published order.
func Columns() []Column {
	out := make([]Column, len(columns))
	copy(out, columns)
	return out
}

// Lookup resolves a column by its published name.
func Lookup(name string) (Column, error) {
	c, ok := columnIndex[name]
	if !ok {
		return Column{}, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return c, nil
}
