package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"council/internal/debate"
	"council/internal/decision"
	"council/internal/logger"
	"council/internal/memory"

	"council/internal/agent"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentRuns caps PropagateMany fan-out; runs only share the
// memory store, which is safe under concurrent appenders.
const maxConcurrentRuns = 4

// Journal receives every finished run (including failed ones) for later
// inspection. Journaling is best-effort; it never fails a run.
type Journal interface {
	Append(ctx context.Context, state *RunState, runErr error) error
}

// Graph is the public driver: it owns the orchestrator, the episodic
// memory and the optional run journal, and exposes the propagate/reflect
// contract to transports and the CLI.
type Graph struct {
	orch    *Orchestrator
	store   memory.Store
	journal Journal
}

// New assembles a Graph. journal may be nil.
func New(cfg Config, invoker agent.Invoker, prompts debate.PromptSource, store memory.Store, toolkit Toolkit, journal Journal) *Graph {
	return &Graph{
		orch:    NewOrchestrator(cfg, invoker, prompts, store, toolkit),
		store:   store,
		journal: journal,
	}
}

// Propagate runs the full pipeline for one (symbol, date) pair and records
// the resulting (situation, decision) episode in memory. On any stage
// failure no state is returned and the memory store is left untouched.
func (g *Graph) Propagate(ctx context.Context, symbol, date string) (*RunState, decision.Decision, error) {
	runID := uuid.NewString()
	state, err := g.orch.Run(ctx, runID, symbol, date)
	if err != nil {
		g.appendJournal(ctx, &RunState{RunID: runID, Symbol: symbol, Date: date}, err)
		return nil, decision.Decision{}, err
	}
	g.appendJournal(ctx, state, nil)

	if _, err := g.store.RecordDecision(ctx, memory.Key{
		RunID:     runID,
		Symbol:    state.Symbol,
		TradeDate: state.Date,
	}, state.analystReports(), *state.Decision); err != nil {
		return nil, decision.Decision{}, fmt.Errorf("recording decision: %w", err)
	}
	return state, *state.Decision, nil
}

// RunResult is one PropagateMany outcome.
type RunResult struct {
	Symbol   string
	State    *RunState
	Decision decision.Decision
	Err      error
}

// PropagateMany runs independent symbols concurrently against the same
// date. Each run is isolated; one symbol failing does not cancel the rest.
func (g *Graph) PropagateMany(ctx context.Context, symbols []string, date string) []RunResult {
	results := make([]RunResult, len(symbols))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentRuns)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		eg.Go(func() error {
			state, d, err := g.Propagate(egCtx, symbol, date)
			results[i] = RunResult{Symbol: symbol, State: state, Decision: d, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// ReflectRequest names which past decision(s) a realized return applies to.
// Exactly one of ByRun or (RunID | Symbol | neither) forms applies; the
// matching rule is explicit rather than implied by call order.
type ReflectRequest struct {
	// RunID pins a single run's record.
	RunID string
	// Symbol targets the most recent unresolved record for that symbol.
	Symbol string
	// Return is the realized return for the matched record.
	Return float64
	// ByRun resolves several runs at once, keyed by run ID.
	ByRun map[string]float64
}

// ReflectAndRemember back-annotates recorded decisions with realized
// outcomes. ErrAlreadyReflected and ErrNoMatchingRecord pass through
// unwrapped so callers can treat them as recoverable.
func (g *Graph) ReflectAndRemember(ctx context.Context, req ReflectRequest) error {
	if len(req.ByRun) > 0 {
		runIDs := make([]string, 0, len(req.ByRun))
		for runID := range req.ByRun {
			runIDs = append(runIDs, runID)
		}
		sort.Strings(runIDs)
		var errs []error
		for _, runID := range runIDs {
			if err := g.store.Reflect(ctx, memory.Match{RunID: runID}, req.ByRun[runID]); err != nil {
				errs = append(errs, fmt.Errorf("run %s: %w", runID, err))
			}
		}
		return errors.Join(errs...)
	}
	return g.store.Reflect(ctx, memory.Match{RunID: req.RunID, Symbol: req.Symbol}, req.Return)
}

func (g *Graph) appendJournal(ctx context.Context, state *RunState, runErr error) {
	if g.journal == nil {
		return
	}
	if err := g.journal.Append(ctx, state, runErr); err != nil {
		logger.Warnf("run journal append failed: %v", err)
	}
}
