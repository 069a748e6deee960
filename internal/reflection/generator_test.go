package reflection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkim9/upbit-autotrade/internal/gateway/provider"
	"github.com/tkim9/upbit-autotrade/internal/store"
)

type scriptedProvider struct {
	reply   string
	lastReq provider.Request
}

func (s *scriptedProvider) ID() string { return "scripted" }

func (s *scriptedProvider) Call(ctx context.Context, req provider.Request) (string, error) {
	s.lastReq = req
	return s.reply, nil
}

func sampleTrade() store.TradeDecision {
	return store.TradeDecision{
		ID:              1,
		Timestamp:       time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Decision:        store.DecisionBuy,
		ConfidenceScore: 80,
		Reason:          "oversold bounce off support",
		CoinName:        "ADA",
		CoinKRWPrice:    1000,
	}
}

func TestGeneratorParsesStructuredOutput(t *testing.T) {
	prov := &scriptedProvider{reply: `{"reflection": "Good entry, confidence matched the setup."}`}
	gen := NewGenerator(prov, nil)

	win := windowWithAvg(1020, 1040, 1060, 1080, 1100, 1120, 1140)
	out := Evaluate(store.DecisionBuy, 1000, win)
	text, err := gen.Reflect(context.Background(), sampleTrade(), win, out)
	require.NoError(t, err)
	assert.Equal(t, "Good entry, confidence matched the setup.", text)

	require.NotNil(t, prov.lastReq.Schema)
	assert.Equal(t, "reflection_output", prov.lastReq.Schema.Name)
	assert.Contains(t, prov.lastReq.UserPrompt, "Coin: ADA")
	assert.Contains(t, prov.lastReq.UserPrompt, "Decision: BUY")
	// Only the first five hours are previewed inline.
	assert.Contains(t, prov.lastReq.UserPrompt, "Hour 5:")
	assert.NotContains(t, prov.lastReq.UserPrompt, "Hour 6:")
	assert.Contains(t, prov.lastReq.UserPrompt, "(2 more hours)")
}

func TestGeneratorRejectsMissingField(t *testing.T) {
	prov := &scriptedProvider{reply: `{"analysis": "not the right shape"}`}
	gen := NewGenerator(prov, nil)

	win := windowWithAvg(1100)
	out := Evaluate(store.DecisionBuy, 1000, win)
	_, err := gen.Reflect(context.Background(), sampleTrade(), win, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reflection field")
}
