package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tkim9/upbit-autotrade/internal/analysis/indicator"
	"github.com/tkim9/upbit-autotrade/internal/gateway/provider"
	"github.com/tkim9/upbit-autotrade/internal/logger"
	"github.com/tkim9/upbit-autotrade/internal/market"
	"github.com/tkim9/upbit-autotrade/internal/store/tracelog"
	"github.com/tkim9/upbit-autotrade/internal/strategy"
)

const lookbackCandles = 120

// Config for the decision engine.
type Config struct {
	Coin          string
	NewsQuery     string
	NewsTimeRange string
	NewsArticles  int
	AttachChart   bool
}

// Engine gathers market context, asks the model for a decision and
// validates the answer.
type Engine struct {
	cfg       Config
	source    market.Source
	portfolio Portfolio
	fng       *market.FearGreedService
	news      *market.NewsService
	strat     *strategy.Loader
	provider  provider.ModelProvider
	chart     ChartRenderer
	trace     *tracelog.Store
}

// NewEngine wires the engine. fng, news, chart and trace may be nil;
// the corresponding prompt sections are simply omitted.
func NewEngine(cfg Config, source market.Source, portfolio Portfolio, fng *market.FearGreedService,
	news *market.NewsService, strat *strategy.Loader, p provider.ModelProvider,
	chart ChartRenderer, trace *tracelog.Store) *Engine {
	if cfg.NewsQuery == "" {
		cfg.NewsQuery = cfg.Coin + " cryptocurrency"
	}
	if cfg.NewsArticles <= 0 {
		cfg.NewsArticles = 10
	}
	return &Engine{
		cfg: cfg, source: source, portfolio: portfolio, fng: fng,
		news: news, strat: strat, provider: p, chart: chart, trace: trace,
	}
}

// Decide runs one full decision cycle. The returned Inputs snapshot is
// meant to be persisted next to the decision row.
func (e *Engine) Decide(ctx context.Context) (Decision, Inputs, error) {
	var (
		candles   []market.Candle
		snap      indicator.Snapshot
		portfolio PortfolioSnapshot
		fngText   string
		newsText  string
		chartURI  string
	)

	// Candles, account state, sentiment and news are independent
	// fetches; only candles and the portfolio are load-bearing.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		candles, err = e.source.FetchHistory(gctx, e.cfg.Coin, market.IntervalHour, lookbackCandles)
		if err != nil {
			return fmt.Errorf("fetching candles: %w", err)
		}
		snap, err = indicator.Compute(candles, indicator.Settings{})
		if err != nil {
			return fmt.Errorf("computing indicators: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		portfolio, err = e.portfolio.Snapshot(gctx, e.cfg.Coin)
		if err != nil {
			return fmt.Errorf("fetching portfolio: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if e.fng == nil {
			return nil
		}
		e.fng.RefreshIfStale(gctx)
		if data, ok := e.fng.Get(); ok {
			fngText = data.PromptText()
		}
		return nil
	})
	g.Go(func() error {
		if e.news == nil {
			return nil
		}
		text, err := e.news.SummaryText(gctx, e.cfg.NewsQuery, e.cfg.NewsTimeRange, e.cfg.NewsArticles)
		if err != nil {
			logger.Warnf("[decision] news fetch failed: %v", err)
			return nil
		}
		newsText = text
		return nil
	})
	if err := g.Wait(); err != nil {
		return Decision{}, Inputs{}, err
	}

	if e.cfg.AttachChart && e.chart != nil {
		uri, err := e.chart(ctx, e.cfg.Coin, market.IntervalHour, candles)
		if err != nil {
			logger.Warnf("[decision] chart render failed, continuing text-only: %v", err)
		} else {
			chartURI = uri
		}
	}

	inputs := Inputs{
		Candles:    len(candles),
		Indicators: snap,
		Portfolio:  portfolio,
		FearGreed:  fngText,
		News:       newsText,
		ChartUsed:  chartURI != "",
	}

	systemPrompt := e.buildSystemPrompt()
	userPrompt := e.buildUserPrompt(inputs)
	logger.LogLLMRequest("decision", systemPrompt, userPrompt)

	raw, callErr := e.provider.Call(ctx, provider.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		ImageDataURI: chartURI,
		Schema:       &provider.ResponseSchema{Name: "trading_decision", Schema: json.RawMessage(decisionSchemaJSON)},
	})
	e.appendTrace(ctx, systemPrompt, userPrompt, raw, chartURI != "", callErr)
	if callErr != nil {
		return Decision{}, inputs, fmt.Errorf("model call: %w", callErr)
	}
	logger.LogLLMResponse("decision", raw)

	d, err := ParseDecision(raw)
	if err != nil {
		return Decision{}, inputs, err
	}
	logger.Infof("[decision] %s %s confidence=%.0f reason=%s", e.cfg.Coin, d.Action, d.Confidence, d.Reason)
	return d, inputs, nil
}

func (e *Engine) buildSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are a disciplined cryptocurrency trading assistant for the Upbit KRW market. ")
	sb.WriteString("Decide whether to buy, sell or hold based on the supplied market context. ")
	sb.WriteString("Respond with a decision, a 0-100 confidence score and a concise reason.\n")
	if e.strat != nil {
		snap := e.strat.Snapshot()
		sb.WriteString("\n## Trading Strategy")
		if snap.Meta.Name != "" {
			fmt.Fprintf(&sb, " (%s v%d)", snap.Meta.Name, snap.Meta.Version)
		}
		sb.WriteString("\n")
		sb.WriteString(snap.Body)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (e *Engine) buildUserPrompt(in Inputs) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Coin: %s\nTime: %s\n\n", e.cfg.Coin, time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "%s\n", in.Indicators.PromptText())
	fmt.Fprintf(&sb, "Portfolio:\n- Coin balance: %.8f\n- KRW balance: %.0f\n- Avg buy price: %.2f KRW\n- Current price: %.2f KRW\n\n",
		in.Portfolio.CoinBalance, in.Portfolio.KRWBalance, in.Portfolio.AvgBuyPrice, in.Portfolio.CurrentPrice)
	if in.FearGreed != "" {
		fmt.Fprintf(&sb, "%s\n\n", in.FearGreed)
	}
	if in.News != "" {
		fmt.Fprintf(&sb, "%s\n\n", in.News)
	}
	if in.ChartUsed {
		sb.WriteString("A candlestick chart of the recent price action is attached.\n")
	}
	return sb.String()
}

func (e *Engine) appendTrace(ctx context.Context, system, user, raw string, hasImage bool, callErr error) {
	if e.trace == nil {
		return
	}
	rec := tracelog.Record{
		TraceID:    uuid.NewString(),
		Timestamp:  time.Now().Unix(),
		Stage:      "decision",
		ProviderID: e.provider.ID(),
		Coin:       e.cfg.Coin,
		System:     system,
		User:       user,
		RawOutput:  raw,
		HasImage:   hasImage,
	}
	if callErr != nil {
		rec.Error = callErr.Error()
	}
	if _, err := e.trace.Append(ctx, rec); err != nil {
		logger.Warnf("[decision] trace append failed: %v", err)
	}
}
