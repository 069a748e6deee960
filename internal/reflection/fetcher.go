package reflection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tkim9/upbit-autotrade/internal/market"
)

// Sentinel errors from the future-window fetch. A trade hitting any of
// these keeps its reflection columns NULL and is retried on the next
// pass.
var (
	ErrTooRecent    = errors.New("trade is too recent, no future data available")
	ErrNoPriceData  = errors.New("no price data available")
	ErrNoWindowData = errors.New("no data in the specified time range")
)

const lookbackCandles = 200

// Fetcher retrieves the hourly price window that followed a trade.
type Fetcher struct {
	source market.Source
	now    func() time.Time
}

func NewFetcher(source market.Source) *Fetcher {
	return &Fetcher{source: source, now: time.Now}
}

// FutureWindow returns the candles in (tradeTime, tradeTime+horizon],
// where horizon is horizonHours capped by how much time has actually
// passed since the trade. Less than one full hour since the trade is
// ErrTooRecent.
func (f *Fetcher) FutureWindow(ctx context.Context, coin string, tradeTime time.Time, horizonHours int) (FutureWindow, error) {
	if horizonHours <= 0 {
		horizonHours = 24
	}
	hoursSince := int(f.now().Sub(tradeTime).Hours())
	hoursAvailable := horizonHours
	if hoursSince < hoursAvailable {
		hoursAvailable = hoursSince
	}
	if hoursAvailable < 1 {
		return FutureWindow{}, ErrTooRecent
	}

	candles, err := f.source.FetchHistory(ctx, coin, market.IntervalHour, lookbackCandles)
	if err != nil {
		return FutureWindow{}, fmt.Errorf("error fetching price data: %w", err)
	}
	if len(candles) == 0 {
		return FutureWindow{}, ErrNoPriceData
	}

	end := tradeTime.Add(time.Duration(horizonHours) * time.Hour)
	filtered := make([]market.Candle, 0, horizonHours)
	for _, c := range candles {
		at := c.OpenAt()
		if at.After(tradeTime) && !at.After(end) {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return FutureWindow{}, ErrNoWindowData
	}

	return FutureWindow{
		Candles:  filtered,
		Start:    filtered[0].OpenAt(),
		End:      filtered[len(filtered)-1].OpenAt(),
		AvgClose: market.MeanClose(filtered),
	}, nil
}
