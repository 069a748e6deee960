package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tkim9/upbit-autotrade/internal/config"
	"github.com/tkim9/upbit-autotrade/internal/decision"
	"github.com/tkim9/upbit-autotrade/internal/executor"
	"github.com/tkim9/upbit-autotrade/internal/logger"
	"github.com/tkim9/upbit-autotrade/internal/notifier"
	"github.com/tkim9/upbit-autotrade/internal/reflection"
	"github.com/tkim9/upbit-autotrade/internal/store"
	"github.com/tkim9/upbit-autotrade/internal/store/tracelog"
	"github.com/tkim9/upbit-autotrade/internal/strategy"
	tradehttp "github.com/tkim9/upbit-autotrade/internal/transport/http"
)

// App orchestrates the trading cycle, the reflection pass and the
// HTTP diary.
type App struct {
	cfg       *config.Config
	store     *store.Store
	traces    *tracelog.Store
	strat     *strategy.Loader
	engine    *decision.Engine
	executor  *executor.Executor
	portfolio decision.Portfolio
	pipeline  *reflection.Pipeline
	httpSrv   *tradehttp.Server
	notify    notifier.TextNotifier
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts the HTTP server and both periodic loops; it returns when
// ctx is canceled or any loop fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error { return a.tradeLoop(ctx) })
	group.Go(func() error { return a.reflectionLoop(ctx) })
	return group.Wait()
}

// Close releases stores and watchers.
func (a *App) Close() {
	if a.strat != nil {
		a.strat.Close()
	}
	if a.traces != nil {
		a.traces.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func (a *App) tradeLoop(ctx context.Context) error {
	interval := a.cfg.Trading.CycleInterval()
	logger.Infof("[app] trade cycle every %s, real_trade=%v", interval, a.cfg.Trading.RealTrade)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.runTradeCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.runTradeCycle(ctx)
		}
	}
}

// runTradeCycle performs one decide-and-execute pass. Failures are
// logged and the loop keeps its schedule.
func (a *App) runTradeCycle(ctx context.Context) {
	d, inputs, err := a.engine.Decide(ctx)
	if err != nil {
		logger.Errorf("[app] decision cycle failed: %v", err)
		return
	}
	id, amount, err := a.executor.Apply(ctx, d, inputs.Portfolio, inputs.MarshalContext(), a.cfg.Trading.RealTrade)
	if err != nil {
		logger.Errorf("[app] executing decision failed: %v", err)
		return
	}
	if paper, ok := a.portfolio.(*paperPortfolio); ok {
		paper.applyFill(d.Action, amount, inputs.Portfolio.CurrentPrice)
	}
	if d.Action != store.DecisionHold {
		text := fmt.Sprintf("*%s %s* confidence %.0f%%\namount %.4f\n%s",
			a.cfg.Market.Coin, d.Action, d.Confidence, amount, d.Reason)
		if err := a.notify.SendText(text); err != nil {
			logger.Warnf("[app] notify failed: %v", err)
		}
	}
	logger.Infof("[app] cycle done decision=%s id=%d", d.Action, id)
}

func (a *App) reflectionLoop(ctx context.Context) error {
	interval := a.cfg.Reflection.Interval()
	logger.Infof("[app] reflection pass every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.runReflectionPass(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.runReflectionPass(ctx)
		}
	}
}

func (a *App) runReflectionPass(ctx context.Context) {
	stats, err := a.pipeline.Run(ctx)
	if err != nil {
		logger.Errorf("[app] reflection pass failed: %v", err)
		return
	}
	if stats.Total == 0 {
		return
	}
	logger.Infof("[app] reflection pass: total=%d processed=%d errors=%d gains=%d losses=%d neutral=%d avg_pl=%.2f%%",
		stats.Total, stats.Processed, stats.Errors, stats.Gains, stats.Losses, stats.Neutral,
		stats.AvgProfitLoss()*100)
	if stats.Processed > 0 {
		text := fmt.Sprintf("*Reflection pass*\nprocessed %d of %d (errors %d)\ngains %d / losses %d / neutral %d\navg profit/loss %.2f%%",
			stats.Processed, stats.Total, stats.Errors,
			stats.Gains, stats.Losses, stats.Neutral, stats.AvgProfitLoss()*100)
		if err := a.notify.SendText(text); err != nil {
			logger.Warnf("[app] notify failed: %v", err)
		}
	}
}
