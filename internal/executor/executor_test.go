package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkim9/upbit-autotrade/internal/decision"
	"github.com/tkim9/upbit-autotrade/internal/gateway/upbit"
	"github.com/tkim9/upbit-autotrade/internal/store"
)

type fakeExchange struct {
	buys  []float64
	sells []float64
	err   error
}

func (f *fakeExchange) BuyMarketOrder(ctx context.Context, coin string, krwAmount float64) (upbit.OrderResult, error) {
	if f.err != nil {
		return upbit.OrderResult{}, f.err
	}
	f.buys = append(f.buys, krwAmount)
	return upbit.OrderResult{UUID: "order-1", Side: "bid"}, nil
}

func (f *fakeExchange) SellMarketOrder(ctx context.Context, coin string, volume float64) (upbit.OrderResult, error) {
	if f.err != nil {
		return upbit.OrderResult{}, f.err
	}
	f.sells = append(f.sells, volume)
	return upbit.OrderResult{UUID: "order-2", Side: "ask"}, nil
}

func newTestExecutor(t *testing.T) (*Executor, *fakeExchange, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "trade_log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ex := &fakeExchange{}
	return New(Config{Coin: "ADA", FeeRate: 0.0005, MinOrderKRW: 5000}, ex, st), ex, st
}

func TestBuySpendKRW(t *testing.T) {
	// 500000 * 0.70 * 0.9995 = 349825
	assert.InDelta(t, 349825, BuySpendKRW(500000, 70, 0.0005), 1e-9)
	// 19990 * 0.50 * 0.9995 = 9990.0025, floored to whole KRW.
	assert.InDelta(t, 9990, BuySpendKRW(19990, 50, 0.0005), 1e-9)
}

func TestSellVolume(t *testing.T) {
	assert.InDelta(t, 62.5, SellVolume(125, 50), 1e-9)
	// Truncated, never rounded up.
	assert.InDelta(t, 0.33333333, SellVolume(1, 33.333333999), 1e-9)
}

func TestApplyRealBuyPlacesOrder(t *testing.T) {
	ex, fake, st := newTestExecutor(t)
	port := decision.PortfolioSnapshot{KRWBalance: 500000, CurrentPrice: 1000}

	id, amount, err := ex.Apply(context.Background(), decision.Decision{Action: "buy", Confidence: 70, Reason: "r"}, port, nil, true)
	require.NoError(t, err)
	require.Len(t, fake.buys, 1)
	assert.InDelta(t, 349825, fake.buys[0], 1e-9)
	assert.InDelta(t, 349825, amount, 1e-9)

	rows, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID)
	assert.True(t, rows[0].IsRealTrade)
	assert.InDelta(t, 349825, rows[0].TradeAmount, 1e-9)
}

func TestApplyDryRunNeverTouchesExchange(t *testing.T) {
	ex, fake, st := newTestExecutor(t)
	port := decision.PortfolioSnapshot{KRWBalance: 500000, CoinBalance: 100, CurrentPrice: 1000}

	_, _, err := ex.Apply(context.Background(), decision.Decision{Action: "buy", Confidence: 70, Reason: "r"}, port, nil, false)
	require.NoError(t, err)
	_, _, err = ex.Apply(context.Background(), decision.Decision{Action: "sell", Confidence: 50, Reason: "r"}, port, nil, false)
	require.NoError(t, err)

	assert.Empty(t, fake.buys)
	assert.Empty(t, fake.sells)

	rows, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.False(t, row.IsRealTrade)
	}
}

func TestApplySkipsBelowMinimum(t *testing.T) {
	ex, fake, st := newTestExecutor(t)
	port := decision.PortfolioSnapshot{KRWBalance: 6000, CoinBalance: 1, CurrentPrice: 1000}

	// 6000 * 0.5 < 5000 KRW minimum.
	_, _, err := ex.Apply(context.Background(), decision.Decision{Action: "buy", Confidence: 50, Reason: "r"}, port, nil, true)
	require.NoError(t, err)
	// 1 * 0.5 * 1000 KRW = 500 < minimum notional.
	_, _, err = ex.Apply(context.Background(), decision.Decision{Action: "sell", Confidence: 50, Reason: "r"}, port, nil, true)
	require.NoError(t, err)

	assert.Empty(t, fake.buys)
	assert.Empty(t, fake.sells)
	rows, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Zero(t, row.TradeAmount, "skipped orders record zero amount")
	}
}

func TestApplyHoldRecordsRow(t *testing.T) {
	ex, fake, st := newTestExecutor(t)
	port := decision.PortfolioSnapshot{KRWBalance: 500000, CurrentPrice: 1000}

	_, _, err := ex.Apply(context.Background(), decision.Decision{Action: "hold", Confidence: 0, Reason: "sideways"}, port, nil, true)
	require.NoError(t, err)
	assert.Empty(t, fake.buys)
	assert.Empty(t, fake.sells)

	rows, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hold", rows[0].Decision)
}

func TestApplySellRealOrder(t *testing.T) {
	ex, fake, _ := newTestExecutor(t)
	port := decision.PortfolioSnapshot{CoinBalance: 200, CurrentPrice: 1000}

	_, _, err := ex.Apply(context.Background(), decision.Decision{Action: "sell", Confidence: 40, Reason: "r"}, port, nil, true)
	require.NoError(t, err)
	require.Len(t, fake.sells, 1)
	assert.InDelta(t, 80, fake.sells[0], 1e-9)
}
