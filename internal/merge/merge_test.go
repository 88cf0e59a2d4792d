package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"quantscraper/internal/analysis"
)

func TestMergeSumsVolumesAndPrefersA(t *testing.T) {
	a := analysis.NewTable([]analysis.Record{
		{Asset: "X", Price: 10, Funding: 0.01, Volume1m: 100, Volume5m: 500, Volume30m: 3000, Volume1h: 6000, Spread5m: 1},
	})
	b := analysis.NewTable([]analysis.Record{
		{Asset: "X", Price: 11, Funding: -0.5, Volume1m: 50, Volume5m: 200, Volume30m: 1000, Volume1h: 2000, Spread5m: 9},
	})

	got := Merge(a, b)
	require.Len(t, got, 1)
	x := got[0]
	require.Equal(t, 150.0, x.Volume1m)
	require.Equal(t, 700.0, x.Volume5m)
	require.Equal(t, 4000.0, x.Volume30m)
	require.Equal(t, 8000.0, x.Volume1h)
	require.Equal(t, 10.0, x.Price)
	require.Equal(t, 0.01, x.Funding)
	require.Equal(t, 1.0, x.Spread5m)
}

func TestMergeOuterJoin(t *testing.T) {
	a := analysis.NewTable([]analysis.Record{
		{Asset: "ONLYA", Volume1m: 10, Price: 1},
		{Asset: "BOTH", Volume1m: 5, Price: 2},
	})
	b := analysis.NewTable([]analysis.Record{
		{Asset: "ONLYB", Volume1m: 30, Price: 3},
		{Asset: "BOTH", Volume1m: 1, Price: 4},
	})

	got := Merge(a, b)
	require.Equal(t, []string{"ONLYB", "ONLYA", "BOTH"}, got.Assets())

	byAsset := map[string]analysis.Record{}
	for _, r := range got {
		byAsset[r.Asset] = r
	}
	require.Equal(t, 10.0, byAsset["ONLYA"].Volume1m)
	require.Equal(t, 30.0, byAsset["ONLYB"].Volume1m)
	require.Equal(t, 3.0, byAsset["ONLYB"].Price)
	require.Equal(t, 6.0, byAsset["BOTH"].Volume1m)
	require.Equal(t, 2.0, byAsset["BOTH"].Price)
}

func TestMergeEmptySides(t *testing.T) {
	b := analysis.NewTable([]analysis.Record{{Asset: "Y", Volume1m: 1}})
	require.Equal(t, []string{"Y"}, Merge(nil, b).Assets())
	require.Empty(t, Merge(nil, nil))
}
