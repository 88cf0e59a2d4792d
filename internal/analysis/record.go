// Package analysis turns a symbol universe into a ranked table of per-symbol
// market analytics.
package analysis

import "time"

// Record is the immutable analysis of one symbol for one cycle. JSON tags
// match the published column names so artifacts can be read back.
type Record struct {
	Asset        string    `json:"Asset"`
	MinQty       float64   `json:"Min qty"`
	Price        float64   `json:"Price"`
	Volume1m     float64   `json:"1m 1x Volume (USDT)"`
	Volume5m     float64   `json:"5m 1x Volume (USDT)"`
	Volume30m    float64   `json:"30m 1x Volume (USDT)"`
	Volume1h     float64   `json:"1h 1x Volume (USDT)"`
	Spread1m     float64   `json:"1m Spread"`
	Spread5m     float64   `json:"5m Spread"`
	Spread30m    float64   `json:"30m Spread"`
	Spread1h     float64   `json:"1h Spread"`
	Spread4h     float64   `json:"4h Spread"`
	TrendPct     float64   `json:"trend%"`
	Trend        string    `json:"Trend"`
	HMATrend     string    `json:"HMA Trend"`
	HMATrendPct  float64   `json:"hma_trend%"`
	MA6High5m    float64   `json:"5m MA6 high"`
	MA6Low5m     float64   `json:"5m MA6 low"`
	Funding      float64   `json:"Funding"`
	Timestamp    time.Time `json:"Timestamp"`
	MFI          string    `json:"MFI"`
	ERIBullPower float64   `json:"ERI Bull Power"`
	ERIBearPower float64   `json:"ERI Bear Power"`
	ERITrend     string    `json:"ERI Trend"`
}
