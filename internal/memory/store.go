package memory

import (
	"context"
	"errors"
	"time"

	"council/internal/decision"
)

var (
	// ErrAlreadyReflected marks a second outcome write against a record
	// whose outcome is already set. Outcomes are ground truth; they are
	// never silently overwritten.
	ErrAlreadyReflected = errors.New("memory: outcome already reflected")

	// ErrNoMatchingRecord means reflection found nothing to resolve.
	ErrNoMatchingRecord = errors.New("memory: no matching unresolved record")

	// ErrEmbeddingSpaceMismatch means the store holds vectors produced by
	// a different embedding model than the active one. Ranking across
	// embedding spaces silently corrupts retrieval, so the store refuses.
	ErrEmbeddingSpaceMismatch = errors.New("memory: embedding space mismatch")
)

// Record is one episodic (situation, decision, outcome) tuple. Outcome is
// nil at decision time and set exactly once by reflection.
type Record struct {
	ID             string            `json:"id"`
	RunID          string            `json:"run_id"`
	Symbol         string            `json:"symbol"`
	TradeDate      string            `json:"trade_date"`
	SituationText  string            `json:"situation_text"`
	Embedding      []float32         `json:"-"`
	EmbeddingModel string            `json:"embedding_model"`
	Decision       decision.Decision `json:"decision"`
	OutcomeReturn  *float64          `json:"outcome_return,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Key identifies the run a record was written under; reflection joins on it.
type Key struct {
	RunID     string
	Symbol    string
	TradeDate string
}

// Match selects the record(s) a reflection applies to. RunID pins a single
// record; otherwise the most recent unresolved record for Symbol (or overall
// when Symbol is empty) is chosen. The rule is explicit rather than implied
// by call order.
type Match struct {
	RunID  string
	Symbol string
}

func (m Match) lockKey() string {
	if m.RunID != "" {
		return "run:" + m.RunID
	}
	if m.Symbol != "" {
		return "sym:" + m.Symbol
	}
	return "*"
}

// Store is the episodic memory behind the graph. RecordDecision is
// append-only and safe under concurrent writers; Reflect serializes its
// check-and-set per matching key.
type Store interface {
	RecordDecision(ctx context.Context, key Key, situation string, d decision.Decision) (string, error)
	RetrieveSimilar(ctx context.Context, situation string, k int) ([]Record, error)
	Reflect(ctx context.Context, match Match, outcome float64) error
	Close() error
}
