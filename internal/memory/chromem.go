package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"council/internal/agent"
	"council/internal/decision"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
)

// ChromemStore is the in-process Store backend built on chromem-go. The
// vector index lives in chromem; record fields (decision, outcome, run key)
// live in a side map that is authoritative for reflection. No durability
// across restarts: use the sqlite backend when outcomes must survive.
type ChromemStore struct {
	collection *chromem.Collection
	embedder   agent.Embedder
	reflects   *keyedMutex

	mu      sync.RWMutex
	records map[string]*Record
}

// NewChromemStore builds an empty in-memory episode store.
func NewChromemStore(embedder agent.Embedder) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("memory store requires an embedder")
	}
	db := chromem.NewDB()
	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection("episodes", nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating episode collection: %w", err)
	}
	return &ChromemStore{
		collection: collection,
		embedder:   embedder,
		reflects:   newKeyedMutex(),
		records:    make(map[string]*Record),
	}, nil
}

func (s *ChromemStore) RecordDecision(ctx context.Context, key Key, situation string, d decision.Decision) (string, error) {
	vec, err := s.embedder.Embed(ctx, situation)
	if err != nil {
		return "", fmt.Errorf("embedding situation: %w", err)
	}
	rec := &Record{
		ID:             uuid.NewString(),
		RunID:          key.RunID,
		Symbol:         key.Symbol,
		TradeDate:      key.TradeDate,
		SituationText:  situation,
		Embedding:      vec,
		EmbeddingModel: s.embedder.Model(),
		Decision:       d,
		CreatedAt:      time.Now(),
	}
	doc := chromem.Document{
		ID:      rec.ID,
		Content: situation,
		Metadata: map[string]string{
			"run_id":    key.RunID,
			"symbol":    key.Symbol,
			"tradedate": key.TradeDate,
		},
		Embedding: vec,
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("appending memory record: %w", err)
	}
	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
	return rec.ID, nil
}

func (s *ChromemStore) RetrieveSimilar(ctx context.Context, situation string, k int) ([]Record, error) {
	if k <= 0 {
		return nil, nil
	}
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	query, err := s.embedder.Embed(ctx, situation)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := s.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying memory: %w", err)
	}
	model := s.embedder.Model()
	s.mu.RLock()
	candidates := make([]Record, 0, len(results))
	for _, res := range results {
		rec, ok := s.records[res.ID]
		if !ok {
			continue
		}
		if rec.EmbeddingModel != model {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: store has %q, query uses %q",
				ErrEmbeddingSpaceMismatch, rec.EmbeddingModel, model)
		}
		candidates = append(candidates, *rec)
	}
	s.mu.RUnlock()
	// Re-rank for the deterministic tie-break (recency, then ID).
	return rankRecords(candidates, query, k), nil
}

func (s *ChromemStore) Reflect(ctx context.Context, match Match, outcome float64) error {
	unlock := s.reflects.lock(match.lockKey())
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	candidates := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		if match.RunID != "" && rec.RunID != match.RunID {
			continue
		}
		if match.RunID == "" && match.Symbol != "" && rec.Symbol != match.Symbol {
			continue
		}
		candidates = append(candidates, rec)
	}
	if len(candidates) == 0 {
		return ErrNoMatchingRecord
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	for _, rec := range candidates {
		if rec.OutcomeReturn != nil {
			continue
		}
		v := outcome
		rec.OutcomeReturn = &v
		return nil
	}
	return ErrAlreadyReflected
}

func (s *ChromemStore) Close() error { return nil }
