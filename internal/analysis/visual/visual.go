package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	talib "github.com/markcheno/go-talib"

	"github.com/tkim9/upbit-autotrade/internal/market"
)

// ImageResult holds a rendered chart screenshot ready for a vision
// prompt.
type ImageResult struct {
	Bytes       []byte `json:"-"`
	Base64      string `json:"base64"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

func (r *ImageResult) DataURI() string {
	if r == nil {
		return ""
	}
	if r.Base64 == "" && len(r.Bytes) > 0 {
		r.Base64 = base64.StdEncoding.EncodeToString(r.Bytes)
	}
	if r.Base64 == "" {
		return ""
	}
	return "data:image/png;base64," + r.Base64
}

const (
	colorBackground  = "#060c1b"
	colorTextPrimary = "#eceff4"
	colorSMA         = "#fbbf24"
	colorEMA         = "#3b82f6"
	colorVolume      = "#a78bfa"

	chartWidthPx   = 1600
	klineHeightPx  = 600
	volumeHeightPx = 260
)

// RenderCandles draws the coin's candles with SMA20/EMA12 overlays and
// a volume bar, then screenshots the page with headless Chrome.
func RenderCandles(ctx context.Context, coin, interval string, candles []market.Candle) (ImageResult, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return ImageResult{}, err
	}
	if strings.TrimSpace(coin) == "" {
		return ImageResult{}, fmt.Errorf("coin required for chart render")
	}
	if len(candles) == 0 {
		return ImageResult{}, fmt.Errorf("no candles to render for %s", coin)
	}
	html, err := buildChartHTML(coin, interval, candles)
	if err != nil {
		return ImageResult{}, err
	}
	height := klineHeightPx + volumeHeightPx
	png, err := renderHTMLToPNG(ctx, html, chartWidthPx, height)
	if err != nil {
		return ImageResult{}, err
	}
	return ImageResult{
		Bytes:       png,
		Base64:      base64.StdEncoding.EncodeToString(png),
		Filename:    fmt.Sprintf("%s_%s.png", strings.ToLower(coin), interval),
		Description: fmt.Sprintf("%s %s candlestick chart with SMA20/EMA12 and volume, last %d candles", coin, interval, len(candles)),
	}, nil
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable probes for a usable Chrome once per process
// so callers can degrade to text-only prompts when it is missing.
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func buildChartHTML(coin, interval string, candles []market.Candle) ([]byte, error) {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	xAxis := make([]string, 0, len(candles))
	klineData := make([]opts.KlineData, 0, len(candles))
	volumeData := make([]opts.BarData, 0, len(candles))
	closes := make([]float64, 0, len(candles))
	for _, c := range candles {
		xAxis = append(xAxis, c.OpenAt().Format("01-02 15:04"))
		klineData = append(klineData, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
		volumeData = append(volumeData, opts.BarData{Value: c.Volume})
		closes = append(closes, c.Close)
	}

	minPrice, maxPrice := priceBounds(candles)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      fmt.Sprintf("%s %s", strings.ToUpper(coin), interval),
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{
			Min: round(minPrice-padding, 4),
			Max: round(maxPrice+padding, 4),
		}),
	)
	kline.SetXAxis(xAxis).AddSeries("price", klineData)

	overlay := charts.NewLine()
	overlay.SetXAxis(xAxis)
	overlay.AddSeries("SMA20", toLineData(talib.Sma(closes, 20)),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorSMA, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	overlay.AddSeries("EMA12", toLineData(talib.Ema(closes, 12)),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEMA, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	kline.Overlap(overlay)
	page.AddCharts(kline)

	volume := charts.NewBar()
	volume.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", volumeHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Volume", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	volume.SetXAxis(xAxis).AddSeries("volume", volumeData,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorVolume}))
	page.AddCharts(volume)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toLineData(series []float64) []opts.LineData {
	out := make([]opts.LineData, 0, len(series))
	for _, v := range series {
		if v == 0 || math.IsNaN(v) {
			out = append(out, opts.LineData{Value: "-"})
			continue
		}
		out = append(out, opts.LineData{Value: round(v, 4)})
	}
	return out
}

func priceBounds(candles []market.Candle) (minVal, maxVal float64) {
	minVal = candles[0].Low
	maxVal = candles[0].High
	for _, c := range candles {
		if c.Low < minVal {
			minVal = c.Low
		}
		if c.High > maxVal {
			maxVal = c.High
		}
	}
	return minVal, maxVal
}

func round(val float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
