package decision

import (
	"context"
	"encoding/json"

	"github.com/tkim9/upbit-autotrade/internal/analysis/indicator"
	"github.com/tkim9/upbit-autotrade/internal/market"
)

// Decision is the model's verdict for one cycle.
type Decision struct {
	Action     string  `json:"decision"`
	Confidence float64 `json:"confidence_score"`
	Reason     string  `json:"reason"`
}

// PortfolioSnapshot is the account state the model reasons over.
type PortfolioSnapshot struct {
	CoinBalance  float64 `json:"coin_balance"`
	KRWBalance   float64 `json:"krw_balance"`
	AvgBuyPrice  float64 `json:"avg_buy_price"`
	CurrentPrice float64 `json:"current_price"`
}

// Portfolio supplies the live account state for a coin.
type Portfolio interface {
	Snapshot(ctx context.Context, coin string) (PortfolioSnapshot, error)
}

// ChartRenderer turns candles into a vision-prompt image; nil data URI
// means no chart.
type ChartRenderer func(ctx context.Context, coin, interval string, candles []market.Candle) (string, error)

// Inputs is everything gathered for one decision. It is serialized
// onto the stored decision row for later review.
type Inputs struct {
	Candles    int                 `json:"candles"`
	Indicators indicator.Snapshot  `json:"indicators"`
	Portfolio  PortfolioSnapshot   `json:"portfolio"`
	FearGreed  string              `json:"fear_greed,omitempty"`
	News       string              `json:"news,omitempty"`
	ChartUsed  bool                `json:"chart_used"`
}

// MarshalContext renders Inputs for the context_json column.
func (in Inputs) MarshalContext() json.RawMessage {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	return raw
}
