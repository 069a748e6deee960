package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/tkim9/upbit-autotrade/internal/analysis/visual"
	"github.com/tkim9/upbit-autotrade/internal/config"
	"github.com/tkim9/upbit-autotrade/internal/decision"
	"github.com/tkim9/upbit-autotrade/internal/executor"
	"github.com/tkim9/upbit-autotrade/internal/gateway/binance"
	"github.com/tkim9/upbit-autotrade/internal/gateway/provider"
	"github.com/tkim9/upbit-autotrade/internal/gateway/upbit"
	"github.com/tkim9/upbit-autotrade/internal/logger"
	"github.com/tkim9/upbit-autotrade/internal/market"
	"github.com/tkim9/upbit-autotrade/internal/notifier"
	"github.com/tkim9/upbit-autotrade/internal/reflection"
	"github.com/tkim9/upbit-autotrade/internal/store"
	"github.com/tkim9/upbit-autotrade/internal/store/tracelog"
	"github.com/tkim9/upbit-autotrade/internal/strategy"
	tradehttp "github.com/tkim9/upbit-autotrade/internal/transport/http"
)

// AppBuilder assembles the application from config.
type AppBuilder struct {
	cfg *config.Config
}

func NewAppBuilder(cfg *config.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build wires every component. The upbit gateway doubles as ticker and
// order executor; binance serves market data only.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg

	st, err := store.New(cfg.Reflection.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening trade store: %w", err)
	}
	traces, err := tracelog.New(cfg.AI.TraceDB)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("opening trace log: %w", err)
	}

	upbitSrc := upbit.New(upbit.Config{
		RESTBaseURL: cfg.Upbit.RESTBaseURL,
		AccessKey:   cfg.Upbit.AccessKey,
		SecretKey:   cfg.Upbit.SecretKey,
		HTTPTimeout: cfg.Upbit.HTTPTimeout(),
	})

	var source market.Source
	var ticker market.Ticker
	switch strings.ToLower(cfg.Market.Exchange) {
	case "binance":
		bnb := binance.New(binance.Config{HTTPTimeout: cfg.Upbit.HTTPTimeout()})
		source, ticker = bnb, bnb
	default:
		source, ticker = upbitSrc, upbitSrc
	}

	var portfolio decision.Portfolio
	if cfg.Upbit.AccessKey != "" && cfg.Upbit.SecretKey != "" && strings.EqualFold(cfg.Market.Exchange, "upbit") {
		portfolio = &upbitPortfolio{src: upbitSrc, coin: cfg.Market.Coin}
	} else {
		logger.Warnf("[app] no exchange credentials, using a simulated portfolio")
		portfolio = newPaperPortfolio(ticker, 0)
	}

	strat, err := strategy.NewLoader(cfg.Strategy.Path)
	if err != nil {
		st.Close()
		traces.Close()
		return nil, fmt.Errorf("loading strategy: %w", err)
	}
	if cfg.Strategy.Watch {
		if err := strat.Watch(); err != nil {
			logger.Warnf("[app] strategy watch unavailable: %v", err)
		}
	}

	model := &provider.OpenAIChatClient{
		BaseURL:    cfg.AI.APIURL,
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		Timeout:    cfg.AI.Timeout(),
		MaxRetries: cfg.AI.MaxRetries,
	}

	fng := market.NewFearGreedService()
	var news *market.NewsService
	if cfg.News.SerpAPIKey != "" {
		news = market.NewNewsService(cfg.News.SerpAPIKey)
	}

	attachChart := visual.EnsureHeadlessAvailable(ctx) == nil
	if !attachChart {
		logger.Warnf("[app] headless chrome unavailable, decisions run text-only")
	}
	chart := func(ctx context.Context, coin, interval string, candles []market.Candle) (string, error) {
		img, err := visual.RenderCandles(ctx, coin, interval, candles)
		if err != nil {
			return "", err
		}
		return img.DataURI(), nil
	}

	engine := decision.NewEngine(decision.Config{
		Coin:          cfg.Market.Coin,
		NewsTimeRange: cfg.News.TimePeriod,
		NewsArticles:  cfg.News.Articles,
		AttachChart:   attachChart,
	}, source, portfolio, fng, news, strat, model, chart, traces)

	exec := executor.New(executor.Config{
		Coin:        cfg.Market.Coin,
		FeeRate:     cfg.Trading.FeeRate,
		MinOrderKRW: cfg.Trading.MinOrderKRW,
	}, upbitSrc, st)

	pipeline := reflection.NewPipeline(reflection.Config{
		Coin:         cfg.Market.Coin,
		MinAge:       cfg.Reflection.MinAgeDuration(),
		HorizonHours: cfg.Reflection.HorizonHours,
	}, st, reflection.NewFetcher(source), reflection.NewGenerator(model, traces))

	httpSrv, err := tradehttp.NewServer(tradehttp.ServerConfig{
		Addr:   cfg.App.HTTPAddr,
		Store:  st,
		Traces: traces,
	})
	if err != nil {
		st.Close()
		traces.Close()
		strat.Close()
		return nil, fmt.Errorf("building http server: %w", err)
	}

	var notify notifier.TextNotifier = notifier.Nop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	return &App{
		cfg:       cfg,
		store:     st,
		traces:    traces,
		strat:     strat,
		engine:    engine,
		executor:  exec,
		portfolio: portfolio,
		pipeline:  pipeline,
		httpSrv:   httpSrv,
		notify:    notify,
	}, nil
}
