package model

import "gorm.io/datatypes"

// TradeDecisionModel is the persistence shape of one trading decision
// plus its post-hoc reflection columns. Timestamps are stored as
// RFC3339 TEXT so lexical order matches chronological order.
type TradeDecisionModel struct {
	ID              int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Timestamp       string         `gorm:"column:timestamp;type:TEXT;index"`
	Decision        string         `gorm:"column:decision"`
	ConfidenceScore float64        `gorm:"column:confidence_score"`
	Reason          string         `gorm:"column:reason"`
	CoinName        string         `gorm:"column:coin_name"`
	CoinBalance     float64        `gorm:"column:coin_balance"`
	KRWBalance      float64        `gorm:"column:krw_balance"`
	CoinAvgBuyPrice float64        `gorm:"column:coin_avg_buy_price"`
	CoinKRWPrice    float64        `gorm:"column:coin_krw_price"`
	TradeAmount     float64        `gorm:"column:trade_amount"`
	IsRealTrade     bool           `gorm:"column:is_real_trade"`
	ContextJSON     datatypes.JSON `gorm:"column:context_json;type:TEXT"`

	// Reflection columns stay NULL until the evaluation pass fills
	// them in one update.
	ReflectionTimestamp *string  `gorm:"column:reflection_timestamp;type:TEXT"`
	ResultType          *string  `gorm:"column:result_type"`
	ResultDescription   *string  `gorm:"column:result_description"`
	Reflection          *string  `gorm:"column:reflection"`
	ProfitLoss          *float64 `gorm:"column:profit_loss"`
}

func (TradeDecisionModel) TableName() string { return "trading_decisions" }
