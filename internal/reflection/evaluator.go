package reflection

import (
	"fmt"
	"strings"

	"github.com/tkim9/upbit-autotrade/internal/store"
)

// Outcome classifies how a trade turned out against the future window.
// ProfitLoss is a signed ratio (0.10 means 10%) from the trader's
// perspective: for a sell, a falling price counts as gain.
type Outcome struct {
	ResultType  string
	Description string
	ProfitLoss  float64
}

// Evaluate scores one decision against the mean close of its future
// window. It is pure: no I/O, deterministic for a given input. Moves
// within ±1% classify as neutral; the comparisons are strict, so a
// move of exactly 1% is still neutral.
func Evaluate(decision string, tradePrice float64, win FutureWindow) Outcome {
	if win.Empty() || tradePrice <= 0 {
		return Outcome{
			ResultType:  store.ResultNeutral,
			Description: "Insufficient future price data to analyze outcome",
			ProfitLoss:  0.0,
		}
	}
	avg := win.AvgClose
	hours := win.Hours()

	switch strings.ToLower(strings.TrimSpace(decision)) {
	case store.DecisionHold:
		return Outcome{
			ResultType: store.ResultNeutral,
			Description: fmt.Sprintf(
				"HOLD decision. Price moved from %.2f to %.2f KRW (avg over %dh). No trade executed.",
				tradePrice, avg, hours),
			ProfitLoss: 0.0,
		}

	case store.DecisionBuy:
		pl := (avg - tradePrice) / tradePrice
		pct := pl * 100
		switch {
		case pl > 0.01:
			return Outcome{
				ResultType: store.ResultGain,
				Description: fmt.Sprintf(
					"BUY at %.2f KRW. Price increased to %.2f KRW (avg over %dh). Profit: %.2f%%",
					tradePrice, avg, hours, pct),
				ProfitLoss: pl,
			}
		case pl < -0.01:
			return Outcome{
				ResultType: store.ResultLoss,
				Description: fmt.Sprintf(
					"BUY at %.2f KRW. Price decreased to %.2f KRW (avg over %dh). Loss: %.2f%%",
					tradePrice, avg, hours, pct),
				ProfitLoss: pl,
			}
		default:
			return Outcome{
				ResultType: store.ResultNeutral,
				Description: fmt.Sprintf(
					"BUY at %.2f KRW. Price remained stable at %.2f KRW (avg over %dh). Change: %.2f%%",
					tradePrice, avg, hours, pct),
				ProfitLoss: pl,
			}
		}

	case store.DecisionSell:
		// Selling before a drop is a gain, so the sign flips.
		pl := (tradePrice - avg) / tradePrice
		movePct := -pl * 100
		switch {
		case pl > 0.01:
			return Outcome{
				ResultType: store.ResultGain,
				Description: fmt.Sprintf(
					"SELL at %.2f KRW. Price dropped to %.2f KRW (avg over %dh). Good timing, avoided %.2f%% drop",
					tradePrice, avg, hours, abs(movePct)),
				ProfitLoss: pl,
			}
		case pl < -0.01:
			return Outcome{
				ResultType: store.ResultLoss,
				Description: fmt.Sprintf(
					"SELL at %.2f KRW. Price rose to %.2f KRW (avg over %dh). Missed %.2f%% gain",
					tradePrice, avg, hours, movePct),
				ProfitLoss: pl,
			}
		default:
			return Outcome{
				ResultType: store.ResultNeutral,
				Description: fmt.Sprintf(
					"SELL at %.2f KRW. Price remained stable at %.2f KRW (avg over %dh). Change: %.2f%%",
					tradePrice, avg, hours, movePct),
				ProfitLoss: pl,
			}
		}

	default:
		return Outcome{
			ResultType:  store.ResultNeutral,
			Description: fmt.Sprintf("Unknown decision type: %s", decision),
			ProfitLoss:  0.0,
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
