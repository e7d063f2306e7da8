package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"council/internal/agent"
	"council/internal/decision"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type episodeRow struct {
	ID             string `gorm:"primaryKey;size:64"`
	RunID          string `gorm:"column:run_id;index"`
	Symbol         string `gorm:"index"`
	TradeDate      string `gorm:"column:trade_date"`
	SituationText  string `gorm:"column:situation_text"`
	EmbeddingJSON  string `gorm:"column:embedding_json"`
	EmbeddingModel string `gorm:"column:embedding_model"`
	Action         string
	Rationale      string
	Confidence     *float64
	OutcomeReturn  *float64 `gorm:"column:outcome_return"`
	CreatedAtNs    int64    `gorm:"column:created_at_ns;index"`
}

func (episodeRow) TableName() string { return "memory_episodes" }

// SQLiteStore is the durable Store backend: Gorm + SQLite rows with the
// vector persisted as JSON, ranking done in process. Episodic stores stay
// small enough that a full scan per retrieval is the simple, deterministic
// choice.
type SQLiteStore struct {
	db       *gorm.DB
	embedder agent.Embedder
	reflects *keyedMutex
}

// NewSQLiteStore opens (or creates) the episode database at path.
func NewSQLiteStore(path string, embedder agent.Embedder) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("memory store path cannot be empty")
	}
	if embedder == nil {
		return nil, fmt.Errorf("memory store requires an embedder")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating memory store dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}
	if err := db.AutoMigrate(&episodeRow{}); err != nil {
		return nil, fmt.Errorf("migrating memory store: %w", err)
	}
	return &SQLiteStore{db: db, embedder: embedder, reflects: newKeyedMutex()}, nil
}

func (s *SQLiteStore) RecordDecision(ctx context.Context, key Key, situation string, d decision.Decision) (string, error) {
	vec, err := s.embedder.Embed(ctx, situation)
	if err != nil {
		return "", fmt.Errorf("embedding situation: %w", err)
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return "", fmt.Errorf("encoding embedding: %w", err)
	}
	row := episodeRow{
		ID:             uuid.NewString(),
		RunID:          key.RunID,
		Symbol:         key.Symbol,
		TradeDate:      key.TradeDate,
		SituationText:  situation,
		EmbeddingJSON:  string(raw),
		EmbeddingModel: s.embedder.Model(),
		Action:         string(d.Action),
		Rationale:      d.Rationale,
		Confidence:     d.Confidence,
		CreatedAtNs:    time.Now().UnixNano(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("appending memory record: %w", err)
	}
	return row.ID, nil
}

func (s *SQLiteStore) RetrieveSimilar(ctx context.Context, situation string, k int) ([]Record, error) {
	if k <= 0 {
		return nil, nil
	}
	var rows []episodeRow
	if err := s.db.WithContext(ctx).Order("created_at_ns desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading memory records: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	model := s.embedder.Model()
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if row.EmbeddingModel != model {
			return nil, fmt.Errorf("%w: store has %q, query uses %q",
				ErrEmbeddingSpaceMismatch, row.EmbeddingModel, model)
		}
		rec, err := rowToRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	query, err := s.embedder.Embed(ctx, situation)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return rankRecords(records, query, k), nil
}

func (s *SQLiteStore) Reflect(ctx context.Context, match Match, outcome float64) error {
	unlock := s.reflects.lock(match.lockKey())
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&episodeRow{})
		if match.RunID != "" {
			q = q.Where("run_id = ?", match.RunID)
		} else if match.Symbol != "" {
			q = q.Where("symbol = ?", match.Symbol)
		}
		var rows []episodeRow
		if err := q.Order("created_at_ns desc").Find(&rows).Error; err != nil {
			return fmt.Errorf("locating memory record: %w", err)
		}
		if len(rows) == 0 {
			return ErrNoMatchingRecord
		}
		for _, row := range rows {
			if row.OutcomeReturn != nil {
				continue
			}
			return tx.Model(&episodeRow{}).Where("id = ?", row.ID).
				Update("outcome_return", outcome).Error
		}
		// Records matched but every one is already resolved.
		return ErrAlreadyReflected
	})
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func rowToRecord(row episodeRow) (Record, error) {
	var vec []float32
	if row.EmbeddingJSON != "" {
		if err := json.Unmarshal([]byte(row.EmbeddingJSON), &vec); err != nil {
			return Record{}, fmt.Errorf("decoding embedding for %s: %w", row.ID, err)
		}
	}
	rec := Record{
		ID:             row.ID,
		RunID:          row.RunID,
		Symbol:         row.Symbol,
		TradeDate:      row.TradeDate,
		SituationText:  row.SituationText,
		Embedding:      vec,
		EmbeddingModel: row.EmbeddingModel,
		OutcomeReturn:  row.OutcomeReturn,
		CreatedAt:      time.Unix(0, row.CreatedAtNs),
	}
	action, err := decision.ParseAction(row.Action)
	if err == nil {
		rec.Decision = decision.Decision{Action: action, Rationale: row.Rationale, Confidence: row.Confidence}
	}
	return rec, nil
}
