package reflection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkim9/upbit-autotrade/internal/market"
)

type fakeSource struct {
	candles []market.Candle
	err     error
	calls   int
}

func (f *fakeSource) FetchHistory(ctx context.Context, coin, interval string, limit int) ([]market.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candles, nil
}

// hourlyCandles builds n consecutive hourly candles starting at from,
// all with the given close.
func hourlyCandles(from time.Time, n int, close float64) []market.Candle {
	out := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		open := from.Add(time.Duration(i) * time.Hour)
		out = append(out, market.Candle{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(time.Hour).UnixMilli(),
			Close:     close,
		})
	}
	return out
}

func fetcherAt(src market.Source, now time.Time) *Fetcher {
	f := NewFetcher(src)
	f.now = func() time.Time { return now }
	return f
}

func TestFutureWindowTooRecent(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{}
	f := fetcherAt(src, now)

	_, err := f.FutureWindow(context.Background(), "ADA", now.Add(-30*time.Minute), 24)
	assert.ErrorIs(t, err, ErrTooRecent)
	assert.Zero(t, src.calls, "too-recent trades must not hit the exchange")
}

func TestFutureWindowFetchErrorWrapped(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{err: fmt.Errorf("dial tcp: timeout")}
	f := fetcherAt(src, now)

	_, err := f.FutureWindow(context.Background(), "ADA", now.Add(-48*time.Hour), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error fetching price data")
}

func TestFutureWindowNoPriceData(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	f := fetcherAt(&fakeSource{}, now)

	_, err := f.FutureWindow(context.Background(), "ADA", now.Add(-48*time.Hour), 24)
	assert.ErrorIs(t, err, ErrNoPriceData)
}

func TestFutureWindowNoDataInRange(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	trade := now.Add(-100 * 24 * time.Hour)
	// Candles exist but all of them postdate the trade's horizon.
	src := &fakeSource{candles: hourlyCandles(now.Add(-10*time.Hour), 10, 1000)}
	f := fetcherAt(src, now)

	_, err := f.FutureWindow(context.Background(), "ADA", trade, 24)
	assert.ErrorIs(t, err, ErrNoWindowData)
}

func TestFutureWindowFiltersHalfOpenRange(t *testing.T) {
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	trade := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// 48 hourly candles straddling the trade: 12 before, 36 after.
	src := &fakeSource{candles: hourlyCandles(trade.Add(-12*time.Hour), 48, 1000)}
	f := fetcherAt(src, now)

	win, err := f.FutureWindow(context.Background(), "ADA", trade, 24)
	require.NoError(t, err)
	// The candle opening exactly at the trade time is excluded, the
	// one at trade+24h is included.
	assert.Equal(t, 24, win.Hours())
	assert.Equal(t, trade.Add(time.Hour), win.Start)
	assert.Equal(t, trade.Add(24*time.Hour), win.End)
	assert.InDelta(t, 1000.0, win.AvgClose, 1e-9)
}

func TestFutureWindowCapsHorizonByElapsedTime(t *testing.T) {
	trade := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := trade.Add(6*time.Hour + 30*time.Minute)
	src := &fakeSource{candles: hourlyCandles(trade, 20, 1000)}
	f := fetcherAt(src, now)

	win, err := f.FutureWindow(context.Background(), "ADA", trade, 24)
	require.NoError(t, err)
	// Only candles that exist so far can be in the window; the fake
	// serves 20 hours but the exchange would have served 6.
	assert.LessOrEqual(t, win.Hours(), 20)
	assert.NotZero(t, win.AvgClose)
}
