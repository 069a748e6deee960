package market

import "time"

// Candle is one OHLCV observation. OpenTime/CloseTime are Unix
// milliseconds (UTC).
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// OpenAt returns the candle open time as a time.Time in UTC.
func (c Candle) OpenAt() time.Time {
	return time.UnixMilli(c.OpenTime).UTC()
}

// MeanClose averages the closing prices of candles. Returns 0 for an
// empty slice; callers gate on len(candles) first.
func MeanClose(candles []Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles {
		sum += c.Close
	}
	return sum / float64(len(candles))
}
