package indicator

import "quantscraper/internal/exchange"

// Oscillator thresholds for the MFI verdict.
const (
	mfiOversold     = 20
	mfiOverbought   = 80
	rsiOversold     = 35
	rsiOverbought   = 65
	RSIPeriod       = 14
	DefaultLookback = 100
)

// Verdict computes MFI(14) and RSI(14) over candles and scans them with
// ScanVerdict.
func Verdict(candles []exchange.Candle, lookback int) string {
	return ScanVerdict(candles, MFI(candles), RSI(Closes(candles), RSIPeriod), lookback)
}

// ScanVerdict walks the last lookback bars from newest to oldest and returns
// the label of the first bar matching a condition: long when
// mfi < 20, rsi < 35 and the bar closed up; short when mfi > 80, rsi > 65 and
// the bar did not close up. The mfi and rsi series are aligned to the end of
// bars; bars without a value never match.
func ScanVerdict(bars []exchange.Candle, mfi, rsi []float64, lookback int) string {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	stop := max(len(bars)-lookback, 0)
	mfiShift := len(bars) - len(mfi)
	rsiShift := len(bars) - len(rsi)

	for i := len(bars) - 1; i >= stop; i-- {
		mi, ri := i-mfiShift, i-rsiShift
		if mi < 0 || ri < 0 {
			break
		}
		m, r := mfi[mi], rsi[ri]
		up := bars[i].Open < bars[i].Close
		switch {
		case m < mfiOversold && r < rsiOversold && up:
			return Long
		case m > mfiOverbought && r > rsiOverbought && !up:
			return Short
		}
	}
	return Neutral
}

// ERI is the elder-ray reading of a series.
type ERI struct {
	BullPower float64
	BearPower float64
	Trend     string
}

// ElderRay measures highs and lows against an EMA(slow) baseline of closes and
// smooths both distances with EMA(power).
func ElderRay(candles []exchange.Candle, slow, power int) (ERI, bool) {
	closes := Closes(candles)
	baseline := EMA(closes, slow)
	if len(baseline) == 0 {
		return ERI{}, false
	}

	highs := Highs(candles)
	lows := Lows(candles)
	shift := len(candles) - len(baseline)
	bull := make([]float64, len(baseline))
	bear := make([]float64, len(baseline))
	for i, b := range baseline {
		bull[i] = highs[i+shift] - b
		bear[i] = lows[i+shift] - b
	}

	bullSmooth, ok := Last(EMA(bull, power))
	if !ok {
		return ERI{}, false
	}
	bearSmooth, _ := Last(EMA(bear, power))

	trend := Bearish
	if closes[len(closes)-1] > baseline[len(baseline)-1] {
		trend = Bullish
	}
	return ERI{BullPower: Sanitize(bullSmooth), BearPower: Sanitize(bearSmooth), Trend: trend}, true
}
