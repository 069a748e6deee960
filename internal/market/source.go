package market

import "context"

// Interval strings accepted by sources.
const (
	IntervalHour = "1h"
	IntervalDay  = "1d"
)

// Source provides historical candles for a coin. Implementations map
// the bare coin name ("ADA") to their own market code (Upbit "KRW-ADA",
// Binance "ADAUSDT").
//
// FetchHistory returns the most recent `limit` closed candles in
// chronological order (oldest first), regardless of the upstream
// exchange's native ordering. Upstream lookback is bounded; callers
// needing a specific time range fetch enough trailing history and
// filter themselves.
type Source interface {
	FetchHistory(ctx context.Context, coin, interval string, limit int) ([]Candle, error)
}

// Ticker exposes the latest traded price for a coin.
type Ticker interface {
	CurrentPrice(ctx context.Context, coin string) (float64, error)
}
