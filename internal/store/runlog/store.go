package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"council/internal/graph"

	_ "modernc.org/sqlite"
)

// Store persists one row per completed or failed propagation so runs can
// be inspected later through the HTTP API.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Record is one journaled run.
type Record struct {
	ID          int64    `json:"id"`
	RunID       string   `json:"run_id"`
	Symbol      string   `json:"symbol"`
	TradeDate   string   `json:"trade_date"`
	Action      string   `json:"action,omitempty"`
	Rationale   string   `json:"rationale,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	StagesJSON  string   `json:"stages_json,omitempty"`
	DebateJSON  string   `json:"debate_json,omitempty"`
	RiskJSON    string   `json:"risk_json,omitempty"`
	Error       string   `json:"error,omitempty"`
	CreatedAtMs int64    `json:"created_at"`
}

// Query filters Recent results.
type Query struct {
	Symbol string
	Limit  int
	Offset int
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("run log path is required")
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
	if err := ensureRunLogSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureRunLogSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			trade_date TEXT NOT NULL,
			action TEXT,
			rationale TEXT,
			confidence REAL,
			stages_json TEXT,
			debate_json TEXT,
			risk_json TEXT,
			error TEXT,
			created_at INTEGER NOT NULL
		);
		`,
		`CREATE INDEX IF NOT EXISTS idx_run_logs_symbol_created ON run_logs(symbol, created_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_run_logs_run_id ON run_logs(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
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

// Append satisfies graph.Journal.
func (s *Store) Append(ctx context.Context, state *graph.RunState, runErr error) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("run log store is closed")
	}
	if state == nil {
		return fmt.Errorf("run state is required")
	}

	enc := func(v interface{}) string {
		if v == nil {
			return ""
		}
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}

	var action, rationale string
	var confidence *float64
	if state.Decision != nil {
		action = string(state.Decision.Action)
		rationale = state.Decision.Rationale
		confidence = state.Decision.Confidence
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO run_logs
			(run_id, symbol, trade_date, action, rationale, confidence,
			 stages_json, debate_json, risk_json, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.RunID,
		strings.ToUpper(strings.TrimSpace(state.Symbol)),
		state.Date,
		action,
		rationale,
		confidence,
		enc(state.StageOutputs),
		enc(state.DebateTranscript),
		enc(state.RiskTranscript),
		errText,
		time.Now().UnixMilli(),
	)
	return err
}

// Recent returns journaled runs, newest first.
func (s *Store) Recent(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("run log store is closed")
	}

	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var sb strings.Builder
	var args []interface{}
	sb.WriteString(`SELECT id, run_id, symbol, trade_date, action, rationale, confidence,
		stages_json, debate_json, risk_json, error, created_at FROM run_logs WHERE 1=1`)
	if sym := strings.ToUpper(strings.TrimSpace(q.Symbol)); sym != "" {
		sb.WriteString(" AND symbol=?")
		args = append(args, sym)
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var confidence sql.NullFloat64
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Symbol, &rec.TradeDate,
			&rec.Action, &rec.Rationale, &confidence,
			&rec.StagesJSON, &rec.DebateJSON, &rec.RiskJSON,
			&rec.Error, &rec.CreatedAtMs); err != nil {
			return nil, err
		}
		if confidence.Valid {
			v := confidence.Float64
			rec.Confidence = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
