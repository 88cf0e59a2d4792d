package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"quantscraper/internal/analysis"
	"quantscraper/internal/publish"
)

func TestCombinerWaitsForBothExchanges(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCombiner("binance", "bybit", pub, zerolog.Nop())
	ctx := context.Background()

	out := c.Accept(ctx, "binance", analysis.NewTable([]analysis.Record{
		{Asset: "BTCUSDT", Price: 100, Volume1m: 10, Volume5m: 50},
	}))
	require.Nil(t, out)
	require.NotContains(t, pub.json, CombinedName)

	out = c.Accept(ctx, "bybit", analysis.NewTable([]analysis.Record{
		{Asset: "BTCUSDT", Price: 101, Volume1m: 5, Volume5m: 20},
		{Asset: "SOLUSDT", Price: 20, Volume1m: 1},
	}))
	require.Len(t, out, 1)
	require.NoError(t, out[0].Err)
	require.Equal(t, CombinedName, out[0].Artifact.Name)

	merged := pub.json[CombinedName].(analysis.Table)
	require.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, merged.Assets())
	require.Equal(t, 15.0, merged[0].Volume1m)
	require.Equal(t, 70.0, merged[0].Volume5m)
	require.Equal(t, 100.0, merged[0].Price)
}

func TestCombinerIgnoresOtherExchanges(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCombiner("binance", "bybit", pub, zerolog.Nop())

	require.Nil(t, c.Accept(context.Background(), "okx", analysis.NewTable([]analysis.Record{{Asset: "X"}})))
	require.Empty(t, pub.json)
}

func TestCombinerUsesLatestTable(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCombiner("binance", "bybit", pub, zerolog.Nop())
	ctx := context.Background()

	c.Accept(ctx, "bybit", analysis.NewTable([]analysis.Record{{Asset: "X", Volume1m: 1}}))
	c.Accept(ctx, "binance", analysis.NewTable([]analysis.Record{{Asset: "X", Volume1m: 1}}))
	c.Accept(ctx, "bybit", analysis.NewTable([]analysis.Record{{Asset: "X", Volume1m: 9}}))

	merged := pub.json[CombinedName].(analysis.Table)
	require.Equal(t, 10.0, merged[0].Volume1m)
}

// gatedPublisher blocks its first PublishTable call until release is closed.
type gatedPublisher struct {
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	tables []analysis.Table
}

func (g *gatedPublisher) PublishTable(_ context.Context, name string, t analysis.Table) publish.Outcome {
	g.mu.Lock()
	first := len(g.tables) == 0
	g.tables = append(g.tables, t)
	g.mu.Unlock()
	if first {
		close(g.entered)
		<-g.release
	}
	return publish.Outcome{Artifact: publish.Artifact{Name: name}, Rows: len(t)}
}

func TestCombinerDoesNotBlockDuringPublish(t *testing.T) {
	pub := &gatedPublisher{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewCombiner("binance", "bybit", pub, zerolog.Nop())
	ctx := context.Background()

	require.Nil(t, c.Accept(ctx, "bybit", analysis.NewTable([]analysis.Record{{Asset: "X", Volume1m: 1}})))

	done := make(chan []publish.Outcome, 1)
	go func() {
		done <- c.Accept(ctx, "binance", analysis.NewTable([]analysis.Record{{Asset: "X", Volume1m: 1}}))
	}()
	<-pub.entered

	returned := make(chan []publish.Outcome, 1)
	go func() {
		returned <- c.Accept(ctx, "bybit", analysis.NewTable([]analysis.Record{{Asset: "X", Volume1m: 9}}))
	}()
	select {
	case out := <-returned:
		require.Nil(t, out)
	case <-time.After(2 * time.Second):
		t.Fatal("accept blocked behind an in-flight publish")
	}

	close(pub.release)
	outcomes := <-done
	require.Len(t, outcomes, 2)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.tables, 2)
	require.Equal(t, 10.0, pub.tables[1][0].Volume1m)
}
