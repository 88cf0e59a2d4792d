package history

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"quantscraper/internal/exchange"
)

type stubKlines struct {
	fail     string
	inflight atomic.Int32
	peak     atomic.Int32
}

func (s *stubKlines) FuturesKline(_ context.Context, symbol, _ string, limit int) ([]exchange.Candle, error) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	if symbol == s.fail {
		return nil, errors.New("rate limited")
	}
	out := make([]exchange.Candle, limit)
	for i := range out {
		out[i] = exchange.Candle{Volume: float64(i + 1)}
	}
	return out, nil
}

func TestVolumeFor(t *testing.T) {
	klines := &stubKlines{}
	agg := New(klines, 2, zerolog.Nop())

	got, err := agg.VolumeFor(context.Background(), []string{"A", "B", "C", "D"}, "1h", 3)
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.Equal(t, []float64{1, 2, 3}, got["C"])
	require.LessOrEqual(t, klines.peak.Load(), int32(2))
}

func TestVolumeForFailsOnFirstError(t *testing.T) {
	agg := New(&stubKlines{fail: "B"}, 4, zerolog.Nop())

	got, err := agg.VolumeFor(context.Background(), []string{"A", "B", "C"}, "1h", 24)
	require.ErrorContains(t, err, "volume history B")
	require.Nil(t, got)
}
