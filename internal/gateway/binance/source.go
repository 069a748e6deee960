package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/tkim9/upbit-autotrade/internal/market"
)

const maxHistoryLimit = 1000

// Config for the Binance spot gateway. Only public market data is
// used, so no API keys are needed.
type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	c.RESTBaseURL = strings.TrimSpace(c.RESTBaseURL)
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}

// Source implements market.Source and market.Ticker on the Binance
// spot API. Coins quote against USDT here; it serves paper setups
// where Upbit access is unavailable.
type Source struct {
	cfg    Config
	client *binance.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := binance.NewClient("", "")
	if final.RESTBaseURL != "" {
		client.BaseURL = final.RESTBaseURL
	}
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}
}

// Symbol maps a coin name to Binance's USDT pair ("ADA" → "ADAUSDT").
func Symbol(coin string) string {
	return strings.ToUpper(strings.TrimSpace(coin)) + "USDT"
}

// FetchHistory returns up to limit candles in chronological order,
// which is Binance's native ordering.
func (s *Source) FetchHistory(ctx context.Context, coin, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	coin = strings.TrimSpace(coin)
	if coin == "" {
		return nil, fmt.Errorf("coin is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}

	kls, err := s.client.NewKlinesService().
		Symbol(Symbol(coin)).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

// CurrentPrice returns the last traded price on the coin's USDT pair.
func (s *Source) CurrentPrice(ctx context.Context, coin string) (float64, error) {
	coin = strings.TrimSpace(coin)
	if coin == "" {
		return 0, fmt.Errorf("coin is required")
	}
	prices, err := s.client.NewListPricesService().Symbol(Symbol(coin)).Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 || prices[0] == nil {
		return 0, fmt.Errorf("binance: empty price response for %s", coin)
	}
	return parseFloat(prices[0].Price), nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
