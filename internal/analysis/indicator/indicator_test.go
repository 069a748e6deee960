package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkim9/upbit-autotrade/internal/market"
)

func syntheticCandles(n int) []market.Candle {
	out := make([]market.Candle, 0, n)
	price := 1000.0
	for i := 0; i < n; i++ {
		price += 5 * math.Sin(float64(i)/7)
		out = append(out, market.Candle{
			OpenTime: int64(i) * 3_600_000,
			Open:     price - 1,
			High:     price + 3,
			Low:      price - 3,
			Close:    price,
			Volume:   100,
		})
	}
	return out
}

func TestComputeSnapshot(t *testing.T) {
	snap, err := Compute(syntheticCandles(120), Settings{})
	require.NoError(t, err)

	assert.NotZero(t, snap.LastClose)
	assert.Greater(t, snap.RSI, 0.0)
	assert.Less(t, snap.RSI, 100.0)
	assert.Greater(t, snap.BBUpper, snap.BBMiddle)
	assert.Greater(t, snap.BBMiddle, snap.BBLower)
	assert.NotZero(t, snap.SMA)
	assert.NotZero(t, snap.EMA)
	assert.NotEmpty(t, snap.RSIState)

	text := snap.PromptText()
	assert.Contains(t, text, "RSI(14)")
	assert.Contains(t, text, "Bollinger(20,2)")
}

func TestComputeNeedsEnoughCandles(t *testing.T) {
	_, err := Compute(syntheticCandles(10), Settings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least")
}
