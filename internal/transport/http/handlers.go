package tradehttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tkim9/upbit-autotrade/internal/store"
	"github.com/tkim9/upbit-autotrade/internal/store/tracelog"
)

type handlers struct {
	store  *store.Store
	traces *tracelog.Store
}

type decisionView struct {
	ID           int64    `json:"id"`
	Timestamp    string   `json:"timestamp"`
	Decision     string   `json:"decision"`
	Confidence   float64  `json:"confidence_score"`
	Reason       string   `json:"reason"`
	Coin         string   `json:"coin_name"`
	Price        float64  `json:"coin_krw_price"`
	TradeAmount  float64  `json:"trade_amount"`
	IsRealTrade  bool     `json:"is_real_trade"`
	ResultType   *string  `json:"result_type,omitempty"`
	ResultDesc   *string  `json:"result_description,omitempty"`
	Reflection   *string  `json:"reflection,omitempty"`
	ProfitLoss   *float64 `json:"profit_loss,omitempty"`
	ReflectionAt *string  `json:"reflection_timestamp,omitempty"`
}

func toView(rec store.TradeDecision) decisionView {
	v := decisionView{
		ID:          rec.ID,
		Timestamp:   rec.Timestamp.Format(time.RFC3339),
		Decision:    rec.Decision,
		Confidence:  rec.ConfidenceScore,
		Reason:      rec.Reason,
		Coin:        rec.CoinName,
		Price:       rec.CoinKRWPrice,
		TradeAmount: rec.TradeAmount,
		IsRealTrade: rec.IsRealTrade,
		ResultType:  rec.ResultType,
		ResultDesc:  rec.ResultDescription,
		Reflection:  rec.Reflection,
		ProfitLoss:  rec.ProfitLoss,
	}
	if rec.ReflectionTimestamp != nil {
		ts := rec.ReflectionTimestamp.Format(time.RFC3339)
		v.ReflectionAt = &ts
	}
	return v
}

func (h *handlers) listDecisions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.store.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]decisionView, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toView(rec))
	}
	c.JSON(http.StatusOK, gin.H{"decisions": out})
}

type summaryView struct {
	Total         int     `json:"total"`
	Reflected     int     `json:"reflected"`
	Pending       int     `json:"pending"`
	Gains         int     `json:"gains"`
	Losses        int     `json:"losses"`
	Neutral       int     `json:"neutral"`
	AvgProfitLoss float64 `json:"avg_profit_loss"`
}

func (h *handlers) summary(c *gin.Context) {
	rows, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var view summaryView
	view.Total = len(rows)
	var plSum float64
	for _, rec := range rows {
		if rec.ResultType == nil {
			view.Pending++
			continue
		}
		view.Reflected++
		switch *rec.ResultType {
		case store.ResultGain:
			view.Gains++
		case store.ResultLoss:
			view.Losses++
		default:
			view.Neutral++
		}
		if rec.ProfitLoss != nil {
			plSum += *rec.ProfitLoss
		}
	}
	if view.Reflected > 0 {
		view.AvgProfitLoss = plSum / float64(view.Reflected)
	}
	c.JSON(http.StatusOK, view)
}

func (h *handlers) listTraces(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := h.traces.ListRecent(c.Request.Context(), tracelog.Query{
		Stage: c.Query("stage"),
		Coin:  c.Query("coin"),
		Limit: limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"traces": recs})
}
