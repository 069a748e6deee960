package reflection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tkim9/upbit-autotrade/internal/market"
	"github.com/tkim9/upbit-autotrade/internal/store"
)

func windowWithAvg(closes ...float64) FutureWindow {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, 0, len(closes))
	for i, c := range closes {
		open := base.Add(time.Duration(i) * time.Hour)
		candles = append(candles, market.Candle{
			OpenTime:  open.UnixMilli(),
			CloseTime: open.Add(time.Hour).UnixMilli(),
			Close:     c,
		})
	}
	return FutureWindow{
		Candles:  candles,
		AvgClose: market.MeanClose(candles),
	}
}

func TestEvaluateBuyGain(t *testing.T) {
	out := Evaluate(store.DecisionBuy, 1000, windowWithAvg(1100))
	assert.Equal(t, store.ResultGain, out.ResultType)
	assert.InDelta(t, 0.10, out.ProfitLoss, 1e-9)
	assert.Contains(t, out.Description, "Price increased")
}

func TestEvaluateBuyLoss(t *testing.T) {
	out := Evaluate(store.DecisionBuy, 1000, windowWithAvg(950))
	assert.Equal(t, store.ResultLoss, out.ResultType)
	assert.InDelta(t, -0.05, out.ProfitLoss, 1e-9)
	assert.Contains(t, out.Description, "Price decreased")
}

func TestEvaluateSellInvertsSign(t *testing.T) {
	// Selling at 1200 while the price rose to 1300 is a missed gain.
	out := Evaluate(store.DecisionSell, 1200, windowWithAvg(1300))
	assert.Equal(t, store.ResultLoss, out.ResultType)
	assert.InDelta(t, -100.0/1200.0, out.ProfitLoss, 1e-9)
	assert.Contains(t, out.Description, "Missed")

	// The same price path scores opposite for a buy.
	buy := Evaluate(store.DecisionBuy, 1200, windowWithAvg(1300))
	assert.Equal(t, store.ResultGain, buy.ResultType)
	assert.InDelta(t, -out.ProfitLoss, buy.ProfitLoss, 1e-9)
}

func TestEvaluateSellGainOnDrop(t *testing.T) {
	out := Evaluate(store.DecisionSell, 1000, windowWithAvg(950))
	assert.Equal(t, store.ResultGain, out.ResultType)
	assert.InDelta(t, 0.05, out.ProfitLoss, 1e-9)
	assert.Contains(t, out.Description, "avoided")
}

func TestEvaluateOnePercentBoundaryIsNeutral(t *testing.T) {
	// Exactly +1% and -1% stay neutral; the comparisons are strict.
	assert.Equal(t, store.ResultNeutral, Evaluate(store.DecisionBuy, 1000, windowWithAvg(1010)).ResultType)
	assert.Equal(t, store.ResultNeutral, Evaluate(store.DecisionBuy, 1000, windowWithAvg(990)).ResultType)
	assert.Equal(t, store.ResultNeutral, Evaluate(store.DecisionSell, 1000, windowWithAvg(1010)).ResultType)

	// Just past the boundary classifies.
	assert.Equal(t, store.ResultGain, Evaluate(store.DecisionBuy, 1000, windowWithAvg(1010.5)).ResultType)
	assert.Equal(t, store.ResultLoss, Evaluate(store.DecisionBuy, 1000, windowWithAvg(989.5)).ResultType)
}

func TestEvaluateHoldAlwaysNeutral(t *testing.T) {
	for _, avg := range []float64{500, 1000, 2000} {
		out := Evaluate(store.DecisionHold, 1000, windowWithAvg(avg))
		assert.Equal(t, store.ResultNeutral, out.ResultType)
		assert.Zero(t, out.ProfitLoss)
		assert.Contains(t, out.Description, "HOLD decision")
	}
}

func TestEvaluateEmptyWindow(t *testing.T) {
	out := Evaluate(store.DecisionBuy, 1000, FutureWindow{})
	assert.Equal(t, store.ResultNeutral, out.ResultType)
	assert.Equal(t, "Insufficient future price data to analyze outcome", out.Description)
	assert.Zero(t, out.ProfitLoss)
}

func TestEvaluateUnknownDecision(t *testing.T) {
	out := Evaluate("short", 1000, windowWithAvg(1100))
	assert.Equal(t, store.ResultNeutral, out.ResultType)
	assert.Equal(t, "Unknown decision type: short", out.Description)
	assert.Zero(t, out.ProfitLoss)
}

func TestEvaluateAveragesWindowCloses(t *testing.T) {
	out := Evaluate(store.DecisionBuy, 1000, windowWithAvg(1000, 1100, 1200))
	assert.InDelta(t, 0.10, out.ProfitLoss, 1e-9)
	assert.Equal(t, store.ResultGain, out.ResultType)
}
