// Package indicator holds the per-symbol market math used by the analyzer.
package indicator

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volume"
	"github.com/shopspring/decimal"

	"quantscraper/internal/exchange"
)

// Direction labels shared by the trend columns.
const (
	Long    = "long"
	Short   = "short"
	Neutral = "neutral"

	Bullish = "bullish"
	Bearish = "bearish"
)

// Round rounds v to places decimals. Non-finite input yields 0.
func Round(v float64, places int32) float64 {
	if !Finite(v) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sanitize maps non-finite values to 0.
func Sanitize(v float64) float64 {
	if !Finite(v) {
		return 0
	}
	return v
}

// Spread returns (max high - min low) / max high * 100 rounded to four
// decimals, or 0 when the highest high is not positive.
func Spread(candles []exchange.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	high, low := candles[0].High, candles[0].Low
	for _, c := range candles[1:] {
		high = max(high, c.High)
		low = min(low, c.Low)
	}
	if high <= 0 {
		return 0
	}
	return Round((high-low)/high*100, 4)
}

// Tail returns the last n candles, or all of them when fewer exist.
func Tail(candles []exchange.Candle, n int) []exchange.Candle {
	if n >= len(candles) {
		return candles
	}
	return candles[len(candles)-n:]
}

// Notional returns price * volume rounded to the nearest integer.
func Notional(price, vol float64) float64 {
	return math.Round(Sanitize(price * vol))
}

// Closes extracts closing prices.
func Closes(candles []exchange.Candle) []float64 {
	return column(candles, func(c exchange.Candle) float64 { return c.Close })
}

// Highs extracts high prices.
func Highs(candles []exchange.Candle) []float64 {
	return column(candles, func(c exchange.Candle) float64 { return c.High })
}

// Lows extracts low prices.
func Lows(candles []exchange.Candle) []float64 {
	return column(candles, func(c exchange.Candle) float64 { return c.Low })
}

func column(candles []exchange.Candle, pick func(exchange.Candle) float64) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = pick(c)
	}
	return out
}

// SMA returns the simple moving average series of period, one value per
// complete window.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
}

// EMA returns the exponential moving average series of period.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	return helper.ChanToSlice(ema.Compute(helper.SliceToChan(values)))
}

// RSI returns the relative strength index series of period.
func RSI(closes []float64, period int) []float64 {
	if period <= 0 || len(closes) <= period {
		return nil
	}
	rsi := momentum.NewRsiWithPeriod[float64](period)
	return helper.ChanToSlice(rsi.Compute(helper.SliceToChan(closes)))
}

// MFIPeriod is the money flow index window.
const MFIPeriod = 14

// MFI returns the 14-period money flow index series.
func MFI(candles []exchange.Candle) []float64 {
	if len(candles) <= MFIPeriod {
		return nil
	}
	mfi := volume.NewMfi[float64]()
	return helper.ChanToSlice(mfi.Compute(
		helper.SliceToChan(Highs(candles)),
		helper.SliceToChan(Lows(candles)),
		helper.SliceToChan(Closes(candles)),
		helper.SliceToChan(exchange.Volumes(candles)),
	))
}

// HMA returns a Hull-style average built from rolling means: the mean over
// sqrt(window) of 2*mean(window/2) - mean(window).
func HMA(values []float64, window int) []float64 {
	half := SMA(values, window/2)
	full := SMA(values, window)
	if len(full) == 0 || len(half) < len(full) {
		return nil
	}
	half = half[len(half)-len(full):]
	diff := make([]float64, len(full))
	for i := range full {
		diff[i] = 2*half[i] - full[i]
	}
	return SMA(diff, int(math.Sqrt(float64(window))))
}

// Last returns the final element of values.
func Last(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}

// MeanLast averages the last n values; ok is false when fewer exist.
func MeanLast(values []float64, n int) (float64, bool) {
	if n <= 0 || len(values) < n {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n), true
}

// OffsetPct returns (last - avg) / last * 100 rounded to four decimals.
func OffsetPct(last, avg float64) float64 {
	if last == 0 {
		return 0
	}
	return Round((last-avg)/last*100, 4)
}

// TrendLabel maps a positive offset to short and anything else to long.
func TrendLabel(offsetPct float64) string {
	if offsetPct > 0 {
		return Short
	}
	return Long
}
