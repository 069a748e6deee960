package tracelog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one LLM call: what was sent, what came back, and where in
// the pipeline it happened.
type Record struct {
	ID         int64  `json:"id"`
	TraceID    string `json:"trace_id"`
	Timestamp  int64  `json:"ts"`
	Stage      string `json:"stage"`
	ProviderID string `json:"provider_id"`
	Coin       string `json:"coin"`
	System     string `json:"system_prompt"`
	User       string `json:"user_prompt"`
	RawOutput  string `json:"raw_output"`
	HasImage   bool   `json:"has_image"`
	Error      string `json:"error,omitempty"`
}

// Query filters ListRecent.
type Query struct {
	Stage string
	Coin  string
	Limit int
}

// Store keeps an append-only LLM call trace in its own SQLite file,
// separate from the trade log.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("tracelog: db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS llm_traces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT,
			ts INTEGER NOT NULL,
			stage TEXT,
			provider_id TEXT,
			coin TEXT,
			system_prompt TEXT,
			user_prompt TEXT,
			raw_output TEXT,
			has_image INTEGER,
			error TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_llm_traces_stage_ts_id ON llm_traces(stage, ts DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_llm_traces_coin_ts_id ON llm_traces(coin, ts DESC, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append writes one record and returns its id.
func (s *Store) Append(ctx context.Context, rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, fmt.Errorf("tracelog: store is closed")
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_traces
			(trace_id, ts, stage, provider_id, coin, system_prompt, user_prompt, raw_output, has_image, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.Timestamp, rec.Stage, rec.ProviderID, rec.Coin,
		rec.System, rec.User, rec.RawOutput, boolToInt(rec.HasImage), rec.Error,
		time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRecent returns the newest matching records first.
func (s *Store) ListRecent(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("tracelog: store is closed")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	where := []string{"1=1"}
	args := []any{}
	if q.Stage != "" {
		where = append(where, "stage = ?")
		args = append(args, q.Stage)
	}
	if q.Coin != "" {
		where = append(where, "coin = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(q.Coin)))
	}
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trace_id, ts, stage, provider_id, coin, system_prompt, user_prompt, raw_output, has_image, error
		 FROM llm_traces WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY ts DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var hasImage int
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.Timestamp, &rec.Stage, &rec.ProviderID,
			&rec.Coin, &rec.System, &rec.User, &rec.RawOutput, &hasImage, &rec.Error); err != nil {
			return nil, err
		}
		rec.HasImage = hasImage != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
