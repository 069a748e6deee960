package tradehttp

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// diaryPage renders the trade diary: cumulative profit/loss over the
// reflected trades plus the per-trade outcome bars.
func (h *handlers) diaryPage(c *gin.Context) {
	rows, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		c.String(http.StatusInternalServerError, "loading decisions failed: %v", err)
		return
	}

	var (
		xAxis      []string
		perTrade   []opts.BarData
		cumulative []opts.LineData
		sum        float64
	)
	for _, rec := range rows {
		if rec.ProfitLoss == nil {
			continue
		}
		pl := *rec.ProfitLoss * 100
		sum += pl
		xAxis = append(xAxis, rec.Timestamp.Format("01-02 15:04")+" "+rec.Decision)
		color := "#34d399"
		if pl < 0 {
			color = "#f87171"
		}
		perTrade = append(perTrade, opts.BarData{Value: pl, ItemStyle: &opts.ItemStyle{Color: color}})
		cumulative = append(cumulative, opts.LineData{Value: sum})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros, Width: "1200px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Trade Diary",
			Subtitle: "per-trade profit/loss (%), reflected trades only, " + time.Now().Format("2006-01-02"),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	bar.SetXAxis(xAxis).AddSeries("profit/loss %", perTrade)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros, Width: "1200px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cumulative profit/loss (%)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetXAxis(xAxis).AddSeries("cumulative %", cumulative,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Smooth: opts.Bool(true)}))

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(bar, line)

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(c.Writer); err != nil {
		c.String(http.StatusInternalServerError, "rendering diary failed: %v", err)
	}
}
