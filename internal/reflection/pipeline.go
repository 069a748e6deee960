package reflection

import (
	"context"
	"time"

	"github.com/tkim9/upbit-autotrade/internal/logger"
	"github.com/tkim9/upbit-autotrade/internal/store"
)

// Stats summarizes one pipeline pass.
type Stats struct {
	Total           int
	Processed       int
	Gains           int
	Losses          int
	Neutral         int
	Errors          int
	TotalProfitLoss float64
}

// AvgProfitLoss is the mean profit/loss ratio over processed trades.
func (s Stats) AvgProfitLoss() float64 {
	if s.Processed == 0 {
		return 0
	}
	return s.TotalProfitLoss / float64(s.Processed)
}

// Config for one pipeline instance.
type Config struct {
	// Coin optionally restricts the pass to one coin.
	Coin string
	// MinAge keeps trades out of the pass until they are old enough
	// to have a meaningful future window.
	MinAge time.Duration
	// HorizonHours bounds the future window per trade.
	HorizonHours int
}

// Pipeline runs the reflection pass: select unreflected trades, fetch
// each trade's future window, score it, generate the reflection text
// and persist everything in one update.
type Pipeline struct {
	cfg       Config
	store     *store.Store
	fetcher   *Fetcher
	generator *Generator
	now       func() time.Time
}

func NewPipeline(cfg Config, st *store.Store, fetcher *Fetcher, generator *Generator) *Pipeline {
	if cfg.MinAge <= 0 {
		cfg.MinAge = 24 * time.Hour
	}
	if cfg.HorizonHours <= 0 {
		cfg.HorizonHours = 24
	}
	return &Pipeline{cfg: cfg, store: st, fetcher: fetcher, generator: generator, now: time.Now}
}

// Run processes every eligible trade once, oldest first. A failure on
// one trade never aborts the pass: the trade keeps its NULL reflection
// columns, counts as an error and is retried on the next pass.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	trades, err := p.store.SelectEligible(ctx, p.cfg.Coin, p.cfg.MinAge)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(trades)}
	if len(trades) == 0 {
		logger.Infof("[reflection] no trades need reflection")
		return stats, nil
	}
	logger.Infof("[reflection] found %d trade(s) to analyze", len(trades))

	for i, trade := range trades {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		logger.Infof("[reflection] [%d/%d] trade id=%d coin=%s decision=%s ts=%s",
			i+1, len(trades), trade.ID, trade.CoinName, trade.Decision,
			trade.Timestamp.Format(time.RFC3339))
		if p.processOne(ctx, trade, &stats) {
			stats.Processed++
		} else {
			stats.Errors++
		}
	}
	return stats, nil
}

// processOne handles a single trade and reports success. Panics are
// contained here so one bad row cannot take down the batch.
func (p *Pipeline) processOne(ctx context.Context, trade store.TradeDecision, stats *Stats) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[reflection] trade id=%d panicked: %v", trade.ID, r)
			ok = false
		}
	}()

	win, err := p.fetcher.FutureWindow(ctx, trade.CoinName, trade.Timestamp, p.cfg.HorizonHours)
	if err != nil {
		logger.Warnf("[reflection] trade id=%d window fetch failed: %v", trade.ID, err)
		return false
	}
	if win.Hours() < 12 {
		logger.Warnf("[reflection] trade id=%d only %dh of future data available", trade.ID, win.Hours())
	}

	outcome := Evaluate(trade.Decision, trade.CoinKRWPrice, win)
	logger.Infof("[reflection] trade id=%d result=%s pl=%.2f%%",
		trade.ID, outcome.ResultType, outcome.ProfitLoss*100)

	text, err := p.generator.Reflect(ctx, trade, win, outcome)
	if err != nil {
		logger.Errorf("[reflection] trade id=%d: %v", trade.ID, err)
		return false
	}

	upd := store.ReflectionUpdate{
		Timestamp:         p.now(),
		ResultType:        outcome.ResultType,
		ResultDescription: outcome.Description,
		Reflection:        text,
		ProfitLoss:        outcome.ProfitLoss,
	}
	if err := p.store.UpdateReflection(ctx, trade.ID, upd); err != nil {
		logger.Errorf("[reflection] trade id=%d update failed: %v", trade.ID, err)
		return false
	}

	stats.TotalProfitLoss += outcome.ProfitLoss
	switch outcome.ResultType {
	case store.ResultGain:
		stats.Gains++
	case store.ResultLoss:
		stats.Losses++
	default:
		stats.Neutral++
	}
	return true
}
