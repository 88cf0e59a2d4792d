// Package merge combines analysis tables of two exchanges.
package merge

import "quantscraper/internal/analysis"

// Merge outer-joins a and b on Asset. The 1x volume columns are summed, a
// missing side counting as zero; every other column comes from a when the
// asset is present there, otherwise from b. The result is sorted.
func Merge(a, b analysis.Table) analysis.Table {
	byAsset := make(map[string]int, len(a)+len(b))
	out := make([]analysis.Record, 0, len(a)+len(b))

	for _, r := range a {
		if i, ok := byAsset[r.Asset]; ok {
			out[i] = r
			continue
		}
		byAsset[r.Asset] = len(out)
		out = append(out, r)
	}
	for _, r := range b {
		i, ok := byAsset[r.Asset]
		if !ok {
			byAsset[r.Asset] = len(out)
			out = append(out, r)
			continue
		}
		merged := out[i]
		merged.Volume1m += r.Volume1m
		merged.Volume5m += r.Volume5m
		merged.Volume30m += r.Volume30m
		merged.Volume1h += r.Volume1h
		out[i] = merged
	}

	return analysis.NewTable(out)
}
