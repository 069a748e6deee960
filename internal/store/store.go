package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	storemodel "github.com/tkim9/upbit-autotrade/internal/store/model"
)

// Decision kinds as persisted in the decision column.
const (
	DecisionBuy  = "buy"
	DecisionSell = "sell"
	DecisionHold = "hold"
)

// Reflection outcome classes as persisted in the result_type column.
const (
	ResultGain    = "gain"
	ResultLoss    = "loss"
	ResultNeutral = "neutral"
)

// TradeDecision is one decision row together with its reflection
// fields. Reflection pointers are nil until the trade has been
// evaluated.
type TradeDecision struct {
	ID              int64
	Timestamp       time.Time
	Decision        string
	ConfidenceScore float64
	Reason          string
	CoinName        string
	CoinBalance     float64
	KRWBalance      float64
	CoinAvgBuyPrice float64
	CoinKRWPrice    float64
	TradeAmount     float64
	IsRealTrade     bool
	Context         json.RawMessage

	ReflectionTimestamp *time.Time
	ResultType          *string
	ResultDescription   *string
	Reflection          *string
	ProfitLoss          *float64
}

// ReflectionUpdate carries the result of one evaluation pass; all
// fields are written to the row in a single update.
type ReflectionUpdate struct {
	Timestamp         time.Time
	ResultType        string
	ResultDescription string
	Reflection        string
	ProfitLoss        float64
}

// Store persists trading decisions and their reflections in SQLite.
type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: db path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&storemodel.TradeDecisionModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a little parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertDecision appends one decision row and returns its id.
func (s *Store) InsertDecision(ctx context.Context, rec TradeDecision) (int64, error) {
	m := toModel(rec)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, err
	}
	return m.ID, nil
}

// SelectEligible returns decisions that have not been reflected on
// yet, oldest first. A positive minAge excludes rows newer than
// now-minAge; the RFC3339 TEXT column makes the cutoff a plain string
// comparison. coin optionally filters to one coin.
func (s *Store) SelectEligible(ctx context.Context, coin string, minAge time.Duration) ([]TradeDecision, error) {
	q := s.db.WithContext(ctx).
		Where("reflection = '' OR reflection IS NULL").
		Order("timestamp ASC")
	if coin = strings.ToUpper(strings.TrimSpace(coin)); coin != "" {
		q = q.Where("coin_name = ?", coin)
	}
	if minAge > 0 {
		cutoff := time.Now().Add(-minAge).UTC().Format(time.RFC3339)
		q = q.Where("timestamp < ?", cutoff)
	}
	var models []storemodel.TradeDecisionModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return fromModels(models)
}

// UpdateReflection writes the evaluation result onto an existing row.
// A missing id reports gorm.ErrRecordNotFound.
func (s *Store) UpdateReflection(ctx context.Context, id int64, upd ReflectionUpdate) error {
	ts := upd.Timestamp.UTC().Format(time.RFC3339)
	res := s.db.WithContext(ctx).
		Model(&storemodel.TradeDecisionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reflection_timestamp": ts,
			"result_type":          upd.ResultType,
			"result_description":   upd.ResultDescription,
			"reflection":           upd.Reflection,
			"profit_loss":          upd.ProfitLoss,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListRecent returns the newest rows first, up to limit.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]TradeDecision, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []storemodel.TradeDecisionModel
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromModels(models)
}

// ListAll returns every row oldest first.
func (s *Store) ListAll(ctx context.Context) ([]TradeDecision, error) {
	var models []storemodel.TradeDecisionModel
	err := s.db.WithContext(ctx).
		Order("timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromModels(models)
}

func toModel(rec TradeDecision) storemodel.TradeDecisionModel {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	m := storemodel.TradeDecisionModel{
		ID:              rec.ID,
		Timestamp:       ts.UTC().Format(time.RFC3339),
		Decision:        strings.ToLower(strings.TrimSpace(rec.Decision)),
		ConfidenceScore: rec.ConfidenceScore,
		Reason:          rec.Reason,
		CoinName:        strings.ToUpper(strings.TrimSpace(rec.CoinName)),
		CoinBalance:     rec.CoinBalance,
		KRWBalance:      rec.KRWBalance,
		CoinAvgBuyPrice: rec.CoinAvgBuyPrice,
		CoinKRWPrice:    rec.CoinKRWPrice,
		TradeAmount:     rec.TradeAmount,
		IsRealTrade:     rec.IsRealTrade,
	}
	if len(rec.Context) > 0 {
		m.ContextJSON = datatypes.JSON(rec.Context)
	}
	return m
}

func fromModels(models []storemodel.TradeDecisionModel) ([]TradeDecision, error) {
	out := make([]TradeDecision, 0, len(models))
	for _, m := range models {
		rec, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func fromModel(m storemodel.TradeDecisionModel) (TradeDecision, error) {
	ts, err := parseStoredTime(m.Timestamp)
	if err != nil {
		return TradeDecision{}, fmt.Errorf("store: row %d has bad timestamp %q: %w", m.ID, m.Timestamp, err)
	}
	rec := TradeDecision{
		ID:                m.ID,
		Timestamp:         ts,
		Decision:          m.Decision,
		ConfidenceScore:   m.ConfidenceScore,
		Reason:            m.Reason,
		CoinName:          m.CoinName,
		CoinBalance:       m.CoinBalance,
		KRWBalance:        m.KRWBalance,
		CoinAvgBuyPrice:   m.CoinAvgBuyPrice,
		CoinKRWPrice:      m.CoinKRWPrice,
		TradeAmount:       m.TradeAmount,
		IsRealTrade:       m.IsRealTrade,
		ResultType:        m.ResultType,
		ResultDescription: m.ResultDescription,
		Reflection:        m.Reflection,
		ProfitLoss:        m.ProfitLoss,
	}
	if len(m.ContextJSON) > 0 {
		rec.Context = json.RawMessage(m.ContextJSON)
	}
	if m.ReflectionTimestamp != nil {
		rts, err := parseStoredTime(*m.ReflectionTimestamp)
		if err == nil {
			rec.ReflectionTimestamp = &rts
		}
	}
	return rec, nil
}

func parseStoredTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
