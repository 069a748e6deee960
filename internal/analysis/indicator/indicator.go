package indicator

import (
	"fmt"
	"math"
	"strings"

	"github.com/markcheno/go-talib"

	"github.com/tkim9/upbit-autotrade/internal/market"
)

// Settings holds the indicator periods. Zero values fall back to the
// usual defaults.
type Settings struct {
	RSIPeriod  int
	SMAPeriod  int
	EMAPeriod  int
	BBPeriod   int
	BBWidth    float64
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

func (s Settings) withDefaults() Settings {
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = 14
	}
	if s.SMAPeriod <= 0 {
		s.SMAPeriod = 20
	}
	if s.EMAPeriod <= 0 {
		s.EMAPeriod = 12
	}
	if s.BBPeriod <= 0 {
		s.BBPeriod = 20
	}
	if s.BBWidth <= 0 {
		s.BBWidth = 2
	}
	if s.MACDFast <= 0 {
		s.MACDFast = 12
	}
	if s.MACDSlow <= 0 {
		s.MACDSlow = 26
	}
	if s.MACDSignal <= 0 {
		s.MACDSignal = 9
	}
	return s
}

// Snapshot is the latest value of each indicator over a candle series.
type Snapshot struct {
	LastClose  float64 `json:"last_close"`
	RSI        float64 `json:"rsi"`
	SMA        float64 `json:"sma"`
	EMA        float64 `json:"ema"`
	BBUpper    float64 `json:"bb_upper"`
	BBMiddle   float64 `json:"bb_middle"`
	BBLower    float64 `json:"bb_lower"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`
	RSIState   string  `json:"rsi_state"`
}

// Compute derives the snapshot from chronological candles. It needs
// at least the slowest period plus signal to produce stable values.
func Compute(candles []market.Candle, cfg Settings) (Snapshot, error) {
	cfg = cfg.withDefaults()
	need := cfg.MACDSlow + cfg.MACDSignal
	if len(candles) < need {
		return Snapshot{}, fmt.Errorf("need at least %d candles, got %d", need, len(candles))
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	upper, middle, lower := talib.BBands(closes, cfg.BBPeriod, cfg.BBWidth, cfg.BBWidth, talib.SMA)
	macd, signal, hist := talib.Macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)

	snap := Snapshot{
		LastClose:  closes[len(closes)-1],
		RSI:        lastValid(talib.Rsi(closes, cfg.RSIPeriod)),
		SMA:        lastValid(talib.Sma(closes, cfg.SMAPeriod)),
		EMA:        lastValid(talib.Ema(closes, cfg.EMAPeriod)),
		BBUpper:    lastValid(upper),
		BBMiddle:   lastValid(middle),
		BBLower:    lastValid(lower),
		MACD:       lastValid(macd),
		MACDSignal: lastValid(signal),
		MACDHist:   lastValid(hist),
	}
	switch {
	case snap.RSI >= 70:
		snap.RSIState = "overbought"
	case snap.RSI <= 30:
		snap.RSIState = "oversold"
	default:
		snap.RSIState = "neutral"
	}
	return snap, nil
}

// PromptText renders the snapshot for the model prompt.
func (s Snapshot) PromptText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Technical indicators (hourly):\n")
	fmt.Fprintf(&sb, "- Last close: %.2f\n", s.LastClose)
	fmt.Fprintf(&sb, "- RSI(14): %.2f (%s)\n", s.RSI, s.RSIState)
	fmt.Fprintf(&sb, "- SMA(20): %.2f / EMA(12): %.2f\n", s.SMA, s.EMA)
	fmt.Fprintf(&sb, "- Bollinger(20,2): upper %.2f, middle %.2f, lower %.2f\n", s.BBUpper, s.BBMiddle, s.BBLower)
	fmt.Fprintf(&sb, "- MACD(12,26,9): %.4f signal %.4f hist %.4f\n", s.MACD, s.MACDSignal, s.MACDHist)
	return sb.String()
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v != 0 {
			return v
		}
	}
	return 0
}
