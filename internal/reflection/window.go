package reflection

import (
	"time"

	"github.com/tkim9/upbit-autotrade/internal/market"
)

// FutureWindow is the slice of hourly candles that followed a trade,
// bounded by the reflection horizon.
type FutureWindow struct {
	Candles  []market.Candle
	Start    time.Time
	End      time.Time
	AvgClose float64
}

// Hours is the number of hourly candles actually retrieved.
func (w FutureWindow) Hours() int { return len(w.Candles) }

// Empty reports whether no future data is available.
func (w FutureWindow) Empty() bool { return len(w.Candles) == 0 }
