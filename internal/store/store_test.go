package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "trade_log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestInsertAndRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)

	id, err := st.InsertDecision(ctx, TradeDecision{
		Timestamp:       ts,
		Decision:        "BUY",
		ConfidenceScore: 75,
		Reason:          "breakout above resistance",
		CoinName:        "ada",
		CoinBalance:     12.5,
		KRWBalance:      500000,
		CoinAvgBuyPrice: 980,
		CoinKRWPrice:    1000,
		TradeAmount:     100000,
		IsRealTrade:     true,
		Context:         json.RawMessage(`{"rsi": 28.4}`),
	})
	require.NoError(t, err)
	require.Positive(t, id)

	rows, err := st.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "buy", row.Decision)
	assert.Equal(t, "ADA", row.CoinName)
	assert.True(t, row.Timestamp.Equal(ts))
	assert.True(t, row.IsRealTrade)
	assert.JSONEq(t, `{"rsi": 28.4}`, string(row.Context))
	assert.Nil(t, row.Reflection)
	assert.Nil(t, row.ProfitLoss)
}

func TestSelectEligibleFilters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	oldADA, err := st.InsertDecision(ctx, TradeDecision{Timestamp: now.Add(-48 * time.Hour), Decision: DecisionBuy, CoinName: "ADA", CoinKRWPrice: 1000})
	require.NoError(t, err)
	_, err = st.InsertDecision(ctx, TradeDecision{Timestamp: now.Add(-1 * time.Hour), Decision: DecisionBuy, CoinName: "ADA", CoinKRWPrice: 1000})
	require.NoError(t, err)
	oldXRP, err := st.InsertDecision(ctx, TradeDecision{Timestamp: now.Add(-72 * time.Hour), Decision: DecisionSell, CoinName: "XRP", CoinKRWPrice: 700})
	require.NoError(t, err)

	// Age cutoff keeps the fresh trade out.
	rows, err := st.SelectEligible(ctx, "", 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, oldXRP, rows[0].ID, "oldest first")
	assert.Equal(t, oldADA, rows[1].ID)

	// Coin filter narrows further.
	rows, err = st.SelectEligible(ctx, "xrp", 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, oldXRP, rows[0].ID)

	// Reflected rows drop out.
	require.NoError(t, st.UpdateReflection(ctx, oldXRP, ReflectionUpdate{
		Timestamp:         now,
		ResultType:        ResultGain,
		ResultDescription: "sold before the drop",
		Reflection:        "well timed exit",
		ProfitLoss:        0.05,
	}))
	rows, err = st.SelectEligible(ctx, "", 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, oldADA, rows[0].ID)
}

func TestUpdateReflectionWritesAllFields(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC)

	id, err := st.InsertDecision(ctx, TradeDecision{Timestamp: now.Add(-48 * time.Hour), Decision: DecisionBuy, CoinName: "ADA", CoinKRWPrice: 1000})
	require.NoError(t, err)

	require.NoError(t, st.UpdateReflection(ctx, id, ReflectionUpdate{
		Timestamp:         now,
		ResultType:        ResultLoss,
		ResultDescription: "price decreased after entry",
		Reflection:        "entry ignored the falling volume",
		ProfitLoss:        -0.042,
	}))

	rows, err := st.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	row := rows[0]
	require.NotNil(t, row.ResultType)
	assert.Equal(t, ResultLoss, *row.ResultType)
	require.NotNil(t, row.ProfitLoss)
	assert.InDelta(t, -0.042, *row.ProfitLoss, 1e-9)
	require.NotNil(t, row.ReflectionTimestamp)
	assert.True(t, row.ReflectionTimestamp.Equal(now))
}

func TestUpdateReflectionUnknownID(t *testing.T) {
	st := newTestStore(t)
	err := st.UpdateReflection(context.Background(), 9999, ReflectionUpdate{
		Timestamp:  time.Now(),
		ResultType: ResultNeutral,
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListRecentNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := st.InsertDecision(ctx, TradeDecision{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Decision:  DecisionHold,
			CoinName:  "ADA",
		})
		require.NoError(t, err)
	}
	rows, err := st.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, rows[0].Timestamp.After(rows[1].Timestamp))
	assert.True(t, rows[1].Timestamp.After(rows[2].Timestamp))
}
