package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/tkim9/upbit-autotrade/internal/logger"
	"github.com/tkim9/upbit-autotrade/internal/market"
)

const (
	defaultRESTBaseURL = "https://api.upbit.com"
	maxCandleCount     = 200
	quoteCurrency      = "KRW"
)

// Config for the Upbit gateway. Access/secret keys are only needed for
// the private endpoints in exchange.go.
type Config struct {
	RESTBaseURL string
	AccessKey   string
	SecretKey   string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.RESTBaseURL) == "" {
		c.RESTBaseURL = defaultRESTBaseURL
	}
	c.RESTBaseURL = strings.TrimRight(strings.TrimSpace(c.RESTBaseURL), "/")
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}

// Source implements market.Source and market.Ticker against the Upbit
// public REST API.
type Source struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	return &Source{
		cfg:    final,
		client: &http.Client{Timeout: final.HTTPTimeout},
	}
}

// MarketCode maps a coin name to Upbit's KRW market code ("ADA" →
// "KRW-ADA").
func MarketCode(coin string) string {
	return quoteCurrency + "-" + strings.ToUpper(strings.TrimSpace(coin))
}

type candlePayload struct {
	Market        string  `json:"market"`
	DateTimeUTC   string  `json:"candle_date_time_utc"`
	OpeningPrice  float64 `json:"opening_price"`
	HighPrice     float64 `json:"high_price"`
	LowPrice      float64 `json:"low_price"`
	TradePrice    float64 `json:"trade_price"`
	TimestampMs   int64   `json:"timestamp"`
	AccTradeVolme float64 `json:"candle_acc_trade_volume"`
}

// FetchHistory returns up to limit closed candles in chronological
// order. Upbit serves most-recent-first; the response is reversed here
// so downstream code never sees exchange-native ordering.
func (s *Source) FetchHistory(ctx context.Context, coin, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxCandleCount {
		limit = maxCandleCount
	}
	coin = strings.TrimSpace(coin)
	if coin == "" {
		return nil, fmt.Errorf("coin is required")
	}

	var path string
	var span time.Duration
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case market.IntervalHour:
		path = "/v1/candles/minutes/60"
		span = time.Hour
	case market.IntervalDay:
		path = "/v1/candles/days"
		span = 24 * time.Hour
	default:
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}

	params := url.Values{}
	params.Set("market", MarketCode(coin))
	params.Set("count", fmt.Sprintf("%d", limit))

	var payload []candlePayload
	if err := s.getJSON(ctx, path+"?"+params.Encode(), &payload); err != nil {
		logger.Errorf("[upbit] fetch candles failed %s %s count=%d: %v", coin, interval, limit, err)
		return nil, err
	}

	out := make([]market.Candle, 0, len(payload))
	for _, p := range payload {
		openTime := parseCandleTime(p.DateTimeUTC)
		if openTime == 0 {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  openTime,
			CloseTime: openTime + span.Milliseconds(),
			Open:      p.OpeningPrice,
			High:      p.HighPrice,
			Low:       p.LowPrice,
			Close:     p.TradePrice,
			Volume:    p.AccTradeVolme,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out, nil
}

type tickerPayload struct {
	Market     string  `json:"market"`
	TradePrice float64 `json:"trade_price"`
}

// CurrentPrice returns the last traded price for the coin's KRW market.
func (s *Source) CurrentPrice(ctx context.Context, coin string) (float64, error) {
	coin = strings.TrimSpace(coin)
	if coin == "" {
		return 0, fmt.Errorf("coin is required")
	}
	var payload []tickerPayload
	if err := s.getJSON(ctx, "/v1/ticker?markets="+url.QueryEscape(MarketCode(coin)), &payload); err != nil {
		return 0, err
	}
	if len(payload) == 0 {
		return 0, fmt.Errorf("upbit: empty ticker response for %s", coin)
	}
	return payload[0].TradePrice, nil
}

// Orderbook holds the best bid/ask for a market.
type Orderbook struct {
	AskPrice float64
	BidPrice float64
}

type orderbookPayload struct {
	Market string `json:"market"`
	Units  []struct {
		AskPrice float64 `json:"ask_price"`
		BidPrice float64 `json:"bid_price"`
	} `json:"orderbook_units"`
}

// FetchOrderbook returns the top-of-book quote for the coin.
func (s *Source) FetchOrderbook(ctx context.Context, coin string) (Orderbook, error) {
	var payload []orderbookPayload
	if err := s.getJSON(ctx, "/v1/orderbook?markets="+url.QueryEscape(MarketCode(coin)), &payload); err != nil {
		return Orderbook{}, err
	}
	if len(payload) == 0 || len(payload[0].Units) == 0 {
		return Orderbook{}, fmt.Errorf("upbit: empty orderbook response for %s", coin)
	}
	top := payload[0].Units[0]
	return Orderbook{AskPrice: top.AskPrice, BidPrice: top.BidPrice}, nil
}

func (s *Source) getJSON(ctx context.Context, pathAndQuery string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.RESTBaseURL+pathAndQuery, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upbit: unexpected status %s for %s", resp.Status, pathAndQuery)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Upbit reports candle open times as "2006-01-02T15:04:05" in UTC
// without a zone suffix.
func parseCandleTime(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	t, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return 0
	}
	return t.UTC().UnixMilli()
}
