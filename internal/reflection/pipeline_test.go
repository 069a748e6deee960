package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkim9/upbit-autotrade/internal/gateway/provider"
	"github.com/tkim9/upbit-autotrade/internal/store"
)

type fakeProvider struct {
	failCoin string
	calls    int
}

func (f *fakeProvider) ID() string { return "fake-model" }

func (f *fakeProvider) Call(ctx context.Context, req provider.Request) (string, error) {
	f.calls++
	if f.failCoin != "" && strings.Contains(req.UserPrompt, "Coin: "+f.failCoin) {
		return "", fmt.Errorf("status=429: rate limited")
	}
	out, _ := json.Marshal(map[string]string{"reflection": "The entry matched the trend and the sizing was reasonable."})
	return string(out), nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "trade_log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func insertTrade(t *testing.T, st *store.Store, coin, decision string, ts time.Time, price float64) int64 {
	t.Helper()
	id, err := st.InsertDecision(context.Background(), store.TradeDecision{
		Timestamp:       ts,
		Decision:        decision,
		ConfidenceScore: 70,
		Reason:          "momentum breakout with rising volume",
		CoinName:        coin,
		CoinKRWPrice:    price,
		TradeAmount:     10000,
	})
	require.NoError(t, err)
	return id
}

func testPipeline(t *testing.T, st *store.Store, src *fakeSource, prov *fakeProvider, now time.Time) *Pipeline {
	t.Helper()
	f := fetcherAt(src, now)
	gen := NewGenerator(prov, nil)
	p := NewPipeline(Config{MinAge: time.Hour, HorizonHours: 24}, st, f, gen)
	p.now = func() time.Time { return now }
	return p
}

func TestPipelineProcessesEligibleTrades(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tradeTime := now.Add(-48 * time.Hour)

	buyID := insertTrade(t, st, "ADA", store.DecisionBuy, tradeTime, 1000)
	sellID := insertTrade(t, st, "ADA", store.DecisionSell, tradeTime.Add(time.Hour), 1200)

	src := &fakeSource{candles: hourlyCandles(tradeTime, 72, 1100)}
	prov := &fakeProvider{}
	p := testPipeline(t, st, src, prov, now)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 1, stats.Gains)
	assert.Equal(t, 1, stats.Losses)

	rows, err := st.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.Reflection)
		require.NotNil(t, row.ResultType)
		require.NotNil(t, row.ProfitLoss)
		require.NotNil(t, row.ReflectionTimestamp)
		switch row.ID {
		case buyID:
			assert.Equal(t, store.ResultGain, *row.ResultType)
			assert.InDelta(t, 0.10, *row.ProfitLoss, 1e-9)
		case sellID:
			assert.Equal(t, store.ResultLoss, *row.ResultType)
			assert.Negative(t, *row.ProfitLoss)
		}
	}
}

func TestPipelineIsolatesFailures(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tradeTime := now.Add(-48 * time.Hour)

	insertTrade(t, st, "ADA", store.DecisionBuy, tradeTime, 1000)
	xrpID := insertTrade(t, st, "XRP", store.DecisionBuy, tradeTime.Add(time.Hour), 700)
	insertTrade(t, st, "ADA", store.DecisionHold, tradeTime.Add(2*time.Hour), 1000)

	src := &fakeSource{candles: hourlyCandles(tradeTime, 72, 1100)}
	prov := &fakeProvider{failCoin: "XRP"}
	p := testPipeline(t, st, src, prov, now)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Errors)

	// The failed trade keeps its NULL reflection and stays eligible.
	pending, err := st.SelectEligible(context.Background(), "", time.Hour)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, xrpID, pending[0].ID)
}

func TestPipelineSkipsReflectedTradesOnSecondRun(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	tradeTime := now.Add(-48 * time.Hour)

	insertTrade(t, st, "ADA", store.DecisionBuy, tradeTime, 1000)
	src := &fakeSource{candles: hourlyCandles(tradeTime, 72, 1100)}
	prov := &fakeProvider{}
	p := testPipeline(t, st, src, prov, now)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Processed)
	callsAfterFirst := prov.calls

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Total)
	assert.Equal(t, callsAfterFirst, prov.calls, "reflected trades must not be re-sent to the model")
}

func TestPipelineRecencyGateCountsError(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	// Passes the store's age cutoff but has no full hour of future
	// data yet, so the fetcher rejects it and the row stays pending.
	id := insertTrade(t, st, "ADA", store.DecisionBuy, now.Add(-20*time.Minute), 1000)
	src := &fakeSource{candles: hourlyCandles(now.Add(-4*time.Hour), 4, 1000)}
	prov := &fakeProvider{}
	p := testPipeline(t, st, src, prov, now)
	p.cfg.MinAge = time.Minute

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Errors)
	assert.Zero(t, stats.Processed)
	assert.Zero(t, prov.calls, "too-recent trades must not reach the model")

	pending, err := st.SelectEligible(context.Background(), "", time.Minute)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
}

func TestPipelineOrdersOldestFirst(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	newer := insertTrade(t, st, "ADA", store.DecisionBuy, now.Add(-48*time.Hour), 1000)
	older := insertTrade(t, st, "ADA", store.DecisionBuy, now.Add(-96*time.Hour), 1000)

	pending, err := st.SelectEligible(context.Background(), "", 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older, pending[0].ID)
	assert.Equal(t, newer, pending[1].ID)
}
