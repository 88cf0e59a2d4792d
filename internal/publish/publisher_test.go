package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"quantscraper/internal/analysis"
)

type recordingMirror struct {
	names []string
	err   error
}

func (m *recordingMirror) Name() string { return "recording" }

func (m *recordingMirror) Put(_ context.Context, name, _ string, _ []byte) error {
	m.names = append(m.names, name)
	return m.err
}

func readRows(t *testing.T, fs afero.Fs, path string) []map[string]any {
	t.Helper()
	raw, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(raw, &rows))
	return rows
}

func assets(rows []map[string]any) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i], _ = r["Asset"].(string)
	}
	return out
}

func TestPublishCycleWritesEveryArtifact(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPublisher(NewWriter(fs), Options{DataDir: "/data", LegacyExchange: "bybit"}, nil, zerolog.Nop())

	outcomes := p.PublishCycle(context.Background(), "binance", fixtureTable())
	require.Len(t, outcomes, 5)
	require.Empty(t, Failed(outcomes))

	require.Equal(t, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}, assets(readRows(t, fs, "/data/quantdatav2_binance.json")))
	require.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, assets(readRows(t, fs, "/data/whattotrade_binance.json")))
	require.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, assets(readRows(t, fs, "/data/rotatorsymbols_binance.json")))

	neg := readRows(t, fs, "/data/negativefunding_binance.json")
	require.Equal(t, []string{"ETHUSDT"}, assets(neg))
	require.Len(t, neg[0], 3)
	require.Contains(t, neg[0], "1m 1x Volume (USDT)")

	require.Equal(t, []string{"BTCUSDT"}, assets(readRows(t, fs, "/data/positivefunding_binance.json")))

	exists, err := afero.Exists(fs, "/data/quantdatav2.json")
	require.NoError(t, err)
	require.False(t, exists, "legacy copies belong to the legacy exchange only")
}

func TestPublishCycleLegacyCopies(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPublisher(NewWriter(fs), Options{DataDir: "/data", LegacyExchange: "bybit"}, nil, zerolog.Nop())

	outcomes := p.PublishCycle(context.Background(), "bybit", fixtureTable())
	require.Len(t, outcomes, 7)

	full, err := afero.ReadFile(fs, "/data/quantdatav2_bybit.json")
	require.NoError(t, err)
	legacy, err := afero.ReadFile(fs, "/data/quantdatav2.json")
	require.NoError(t, err)
	require.Equal(t, full, legacy)

	rot, err := afero.ReadFile(fs, "/data/rotatorsymbols_bybit.json")
	require.NoError(t, err)
	legacyRot, err := afero.ReadFile(fs, "/data/rotatorsymbols.json")
	require.NoError(t, err)
	require.Equal(t, rot, legacyRot)
}

// failingRenameFs refuses to rename onto one destination.
type failingRenameFs struct {
	afero.Fs
	target string
}

func (f failingRenameFs) Rename(oldname, newname string) error {
	if newname == f.target {
		return errors.New("read-only destination")
	}
	return f.Fs.Rename(oldname, newname)
}

func TestPublishCycleIsolatesArtifactFailures(t *testing.T) {
	base := afero.NewMemMapFs()
	fs := failingRenameFs{Fs: base, target: "/data/whattotrade_binance.json"}

	p := NewPublisher(NewWriter(fs), Options{DataDir: "/data"}, nil, zerolog.Nop())
	outcomes := p.PublishCycle(context.Background(), "binance", fixtureTable())

	require.Equal(t, []string{"whattotrade_binance"}, Failed(outcomes))
	for _, name := range []string{"quantdatav2_binance", "rotatorsymbols_binance", "negativefunding_binance", "positivefunding_binance"} {
		exists, err := afero.Exists(base, "/data/"+name+".json")
		require.NoError(t, err)
		require.True(t, exists, name)
	}
}

func TestMirrorFailureDoesNotFailPublish(t *testing.T) {
	fs := afero.NewMemMapFs()
	mirror := &recordingMirror{err: errors.New("bucket gone")}
	p := NewPublisher(NewWriter(fs), Options{DataDir: "/data"}, []Mirror{mirror}, zerolog.Nop())

	out := p.PublishTable(context.Background(), "quantdatav2_combined", fixtureTable())
	require.NoError(t, out.Err)
	require.Equal(t, 3, out.Rows)
	require.Equal(t, []string{"quantdatav2_combined.json"}, mirror.names)
}

func TestPublishJSONIgnoresTableFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPublisher(NewWriter(fs), Options{DataDir: "/data", Format: FormatCSV}, nil, zerolog.Nop())

	a, err := p.PublishJSON(context.Background(), ExchangeName(HistoricalVolume, "binance"), map[string][]float64{"BTCUSDT": {1, 2}})
	require.NoError(t, err)
	require.Equal(t, "/data/total_historical_volume_binance.json", a.Path)

	raw, err := afero.ReadFile(fs, a.Path)
	require.NoError(t, err)
	require.JSONEq(t, `{"BTCUSDT":[1,2]}`, string(raw))

	require.Equal(t, "/data/quantdatav2_binance.csv", p.Artifact("quantdatav2_binance").Path)
}

func TestReadTableRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPublisher(NewWriter(fs), Options{DataDir: "/data"}, nil, zerolog.Nop())
	out := p.PublishTable(context.Background(), "quantdatav2_binance", fixtureTable())
	require.NoError(t, out.Err)

	table, err := ReadTable(fs, out.Artifact.Path)
	require.NoError(t, err)
	require.Equal(t, fixtureTable(), table)

	_, err = ReadTable(fs, "/data/quantdatav2_binance.csv")
	require.Error(t, err)
}

func TestAnalysisFilterErrorSkipsOnlyThatView(t *testing.T) {
	_, err := analysis.Filter(fixtureTable(), analysis.ColFunding, "!=", 0)
	require.ErrorIs(t, err, analysis.ErrUnsupportedOperator)
}
