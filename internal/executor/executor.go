package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tkim9/upbit-autotrade/internal/decision"
	"github.com/tkim9/upbit-autotrade/internal/gateway/upbit"
	"github.com/tkim9/upbit-autotrade/internal/logger"
	"github.com/tkim9/upbit-autotrade/internal/store"
)

// Exchange places market orders; *upbit.Source satisfies it.
type Exchange interface {
	BuyMarketOrder(ctx context.Context, coin string, krwAmount float64) (upbit.OrderResult, error)
	SellMarketOrder(ctx context.Context, coin string, volume float64) (upbit.OrderResult, error)
}

// Config for order sizing.
type Config struct {
	Coin        string
	FeeRate     float64
	MinOrderKRW float64
}

func (c Config) withDefaults() Config {
	if c.FeeRate <= 0 {
		c.FeeRate = 0.0005
	}
	if c.MinOrderKRW <= 0 {
		c.MinOrderKRW = 5000
	}
	return c
}

// Executor sizes and places orders for a decision, then records the
// decision row. Order placement only happens when the caller passes
// isRealTrade; the flag is always threaded explicitly so a dry run can
// never silently turn into a live order.
type Executor struct {
	cfg      Config
	exchange Exchange
	store    *store.Store
}

func New(cfg Config, exchange Exchange, st *store.Store) *Executor {
	return &Executor{cfg: cfg.withDefaults(), exchange: exchange, store: st}
}

// Apply executes one decision against the portfolio and persists the
// decision row. It returns the stored row id and the traded amount:
// KRW spent for a buy, coin volume for a sell, zero otherwise.
func (e *Executor) Apply(ctx context.Context, d decision.Decision, port decision.PortfolioSnapshot, contextJSON json.RawMessage, isRealTrade bool) (int64, float64, error) {
	tradeAmount, err := e.execute(ctx, d, port, isRealTrade)
	if err != nil {
		return 0, 0, err
	}

	rec := store.TradeDecision{
		Timestamp:       time.Now(),
		Decision:        d.Action,
		ConfidenceScore: d.Confidence,
		Reason:          d.Reason,
		CoinName:        e.cfg.Coin,
		CoinBalance:     port.CoinBalance,
		KRWBalance:      port.KRWBalance,
		CoinAvgBuyPrice: port.AvgBuyPrice,
		CoinKRWPrice:    port.CurrentPrice,
		TradeAmount:     tradeAmount,
		IsRealTrade:     isRealTrade,
		Context:         contextJSON,
	}
	id, err := e.store.InsertDecision(ctx, rec)
	if err != nil {
		return 0, 0, fmt.Errorf("recording decision: %w", err)
	}
	logger.Infof("[executor] recorded %s id=%d amount=%.4f real=%v", d.Action, id, tradeAmount, isRealTrade)
	return id, tradeAmount, nil
}

// execute sizes the order and, for real trades, places it. It returns
// the traded amount: KRW spent for a buy, coin volume for a sell, zero
// for a hold or an order below the exchange minimum.
func (e *Executor) execute(ctx context.Context, d decision.Decision, port decision.PortfolioSnapshot, isRealTrade bool) (float64, error) {
	switch d.Action {
	case store.DecisionBuy:
		spend := BuySpendKRW(port.KRWBalance, d.Confidence, e.cfg.FeeRate)
		if spend < e.cfg.MinOrderKRW {
			logger.Warnf("[executor] buy skipped: %.0f KRW is below the %.0f minimum", spend, e.cfg.MinOrderKRW)
			return 0, nil
		}
		if isRealTrade {
			ack, err := e.exchange.BuyMarketOrder(ctx, e.cfg.Coin, spend)
			if err != nil {
				return 0, fmt.Errorf("buy order: %w", err)
			}
			logger.Infof("[executor] buy order placed uuid=%s spend=%.0f KRW", ack.UUID, spend)
		} else {
			logger.Infof("[executor] dry-run buy %.0f KRW", spend)
		}
		return spend, nil

	case store.DecisionSell:
		volume := SellVolume(port.CoinBalance, d.Confidence)
		if volume <= 0 || volume*port.CurrentPrice < e.cfg.MinOrderKRW {
			logger.Warnf("[executor] sell skipped: %.8f %s (%.0f KRW) is below the %.0f minimum",
				volume, e.cfg.Coin, volume*port.CurrentPrice, e.cfg.MinOrderKRW)
			return 0, nil
		}
		if isRealTrade {
			ack, err := e.exchange.SellMarketOrder(ctx, e.cfg.Coin, volume)
			if err != nil {
				return 0, fmt.Errorf("sell order: %w", err)
			}
			logger.Infof("[executor] sell order placed uuid=%s volume=%.8f", ack.UUID, volume)
		} else {
			logger.Infof("[executor] dry-run sell %.8f %s", volume, e.cfg.Coin)
		}
		return volume, nil

	case store.DecisionHold:
		return 0, nil

	default:
		return 0, fmt.Errorf("unknown decision action %q", d.Action)
	}
}

// BuySpendKRW sizes a buy: confidence percent of the KRW balance with
// the taker fee reserved, floored to whole KRW. decimal keeps the fee
// math exact where float64 would drift.
func BuySpendKRW(krwBalance, confidence, feeRate float64) float64 {
	spend := decimal.NewFromFloat(krwBalance).
		Mul(decimal.NewFromFloat(confidence).Div(decimal.NewFromInt(100))).
		Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(feeRate))).
		Floor()
	f, _ := spend.Float64()
	return f
}

// SellVolume sizes a sell: confidence percent of the coin balance,
// truncated to Upbit's 8 decimal places.
func SellVolume(coinBalance, confidence float64) float64 {
	vol := decimal.NewFromFloat(coinBalance).
		Mul(decimal.NewFromFloat(confidence).Div(decimal.NewFromInt(100))).
		Truncate(8)
	f, _ := vol.Float64()
	return f
}
