package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"council/internal/agent"
	"council/internal/debate"
	"council/internal/decision"
	"council/internal/memory"
	"council/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoInvoker answers every call with "<role>:<tier> says HOLD" and keeps
// the call log for shape assertions.
type echoInvoker struct {
	mu      sync.Mutex
	calls   []agent.Request
	failOn  agent.Role
	failErr error
}

func (e *echoInvoker) Invoke(_ context.Context, req agent.Request) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, req)
	e.mu.Unlock()
	if e.failOn != "" && req.Role == e.failOn {
		return "", &agent.InvocationError{Role: req.Role, Cause: e.failErr}
	}
	return fmt.Sprintf("%s:%s says HOLD", req.Role, req.Tier), nil
}

func (e *echoInvoker) rolesCalled() []agent.Role {
	e.mu.Lock()
	defer e.mu.Unlock()
	roles := make([]agent.Role, len(e.calls))
	for i, call := range e.calls {
		roles[i] = call.Role
	}
	return roles
}

type flatEmbedder struct{}

func (flatEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i := 0; i < len(text); i++ {
		vec[int(text[i])%8]++
	}
	return vec, nil
}

func (flatEmbedder) Model() string { return "stub-embed-v1" }

func newTestGraph(t *testing.T, cfg Config, invoker agent.Invoker) (*Graph, memory.Store) {
	t.Helper()
	store, err := memory.NewChromemStore(flatEmbedder{})
	require.NoError(t, err)
	prompts, err := prompt.NewManager("")
	require.NoError(t, err)
	return New(cfg, invoker, prompts, store, nil, nil), store
}

func TestEndToEndHoldScenario(t *testing.T) {
	invoker := &echoInvoker{}
	g, _ := newTestGraph(t, Config{MaxDebateRounds: 1, MaxRiskRounds: 1}, invoker)

	state, d, err := g.Propagate(context.Background(), "NVDA", "2024-05-10")
	require.NoError(t, err)
	assert.Equal(t, decision.ActionHold, d.Action)
	require.NotNil(t, state.Decision)
	assert.Equal(t, d, *state.Decision)

	// One debate round over bull/bear, one risk round over three stances.
	assert.Len(t, state.DebateTranscript, 1*len(InvestmentDebateRoles))
	assert.Len(t, state.RiskTranscript, 1*len(DefaultRiskRoles))

	wantOrder := []StageName{
		StageMarketReport, StageSentimentReport, StageNewsReport, StageFundamentalsReport,
		StageInvestmentPlan, StageTraderPlan, StageRiskAssessment, StageFinalDecision,
	}
	require.Len(t, state.StageOutputs, len(wantOrder))
	for i, name := range wantOrder {
		assert.Equal(t, name, state.StageOutputs[i].Name, "stage %d", i)
	}
}

func TestDebateTranscriptScalesWithRounds(t *testing.T) {
	invoker := &echoInvoker{}
	g, _ := newTestGraph(t, Config{MaxDebateRounds: 3, MaxRiskRounds: 2}, invoker)

	state, _, err := g.Propagate(context.Background(), "NVDA", "2024-05-10")
	require.NoError(t, err)
	assert.Len(t, state.DebateTranscript, 3*len(InvestmentDebateRoles))
	assert.Len(t, state.RiskTranscript, 2*len(DefaultRiskRoles))

	for i, turn := range state.DebateTranscript {
		assert.Equal(t, i/2+1, turn.Round)
		want := InvestmentDebateRoles[i%2]
		assert.Equal(t, want, turn.Role)
	}
}

func TestRiskRoleSubset(t *testing.T) {
	invoker := &echoInvoker{}
	cfg := Config{
		MaxDebateRounds: 1,
		MaxRiskRounds:   2,
		RiskRoles:       []agent.Role{agent.RoleRiskyDebater, agent.RoleSafeDebater},
	}
	g, _ := newTestGraph(t, cfg, invoker)

	state, _, err := g.Propagate(context.Background(), "ETH", "2024-05-10")
	require.NoError(t, err)
	assert.Len(t, state.RiskTranscript, 2*2)
	for _, turn := range state.RiskTranscript {
		assert.NotEqual(t, agent.RoleNeutralDebater, turn.Role)
	}
}

func TestDeterministicGivenDeterministicInvoker(t *testing.T) {
	run := func() *RunState {
		invoker := &echoInvoker{}
		g, _ := newTestGraph(t, Config{MaxDebateRounds: 2, MaxRiskRounds: 1}, invoker)
		state, _, err := g.Propagate(context.Background(), "NVDA", "2024-05-10")
		require.NoError(t, err)
		return state
	}
	first := run()
	second := run()

	assert.Equal(t, first.StageOutputs, second.StageOutputs)
	assert.Equal(t, first.DebateTranscript, second.DebateTranscript)
	assert.Equal(t, first.RiskTranscript, second.RiskTranscript)
	assert.Equal(t, first.Decision, second.Decision)
}

func TestThirdAnalystFailureAbortsBeforeDebate(t *testing.T) {
	cause := errors.New("rate limited")
	invoker := &echoInvoker{failOn: agent.RoleNewsAnalyst, failErr: cause}
	g, store := newTestGraph(t, Config{MaxDebateRounds: 1, MaxRiskRounds: 1}, invoker)

	state, _, err := g.Propagate(context.Background(), "NVDA", "2024-05-10")
	require.Error(t, err)
	assert.Nil(t, state)

	var failure *StageFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, StageNewsReport, failure.Stage)
	var invErr *agent.InvocationError
	assert.ErrorAs(t, err, &invErr)
	assert.ErrorIs(t, err, cause)

	// The debate never started.
	for _, role := range invoker.rolesCalled() {
		assert.NotEqual(t, agent.RoleBullResearcher, role)
		assert.NotEqual(t, agent.RoleBearResearcher, role)
	}
	// And the memory store saw no partial write.
	records, err := store.RetrieveSimilar(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDebateFailureKeepsRoundAndRole(t *testing.T) {
	invoker := &echoInvoker{failOn: agent.RoleBearResearcher, failErr: errors.New("boom")}
	g, _ := newTestGraph(t, Config{MaxDebateRounds: 2, MaxRiskRounds: 1}, invoker)

	_, _, err := g.Propagate(context.Background(), "NVDA", "2024-05-10")
	require.Error(t, err)

	var stageFailure *StageFailure
	require.ErrorAs(t, err, &stageFailure)
	assert.Equal(t, StageInvestmentPlan, stageFailure.Stage)
	var debateFailure *debate.Failure
	require.ErrorAs(t, err, &debateFailure)
	assert.Equal(t, 1, debateFailure.Round)
	assert.Equal(t, agent.RoleBearResearcher, debateFailure.Role)
}

func TestSuccessfulRunIsRemembered(t *testing.T) {
	invoker := &echoInvoker{}
	g, store := newTestGraph(t, Config{MaxDebateRounds: 1, MaxRiskRounds: 1}, invoker)

	state, _, err := g.Propagate(context.Background(), "NVDA", "2024-05-10")
	require.NoError(t, err)

	records, err := store.RetrieveSimilar(context.Background(), state.analystReports(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, state.RunID, records[0].RunID)
	assert.Equal(t, "NVDA", records[0].Symbol)
	assert.Equal(t, decision.ActionHold, records[0].Decision.Action)
	assert.Nil(t, records[0].OutcomeReturn)
}

func TestReflectAndRememberRoundtrip(t *testing.T) {
	invoker := &echoInvoker{}
	g, store := newTestGraph(t, Config{MaxDebateRounds: 1, MaxRiskRounds: 1}, invoker)

	state, _, err := g.Propagate(context.Background(), "NVDA", "2024-05-10")
	require.NoError(t, err)

	require.NoError(t, g.ReflectAndRemember(context.Background(), ReflectRequest{Symbol: "NVDA", Return: 0.08}))

	err = g.ReflectAndRemember(context.Background(), ReflectRequest{RunID: state.RunID, Return: -1})
	assert.ErrorIs(t, err, memory.ErrAlreadyReflected)

	records, err := store.RetrieveSimilar(context.Background(), state.analystReports(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].OutcomeReturn)
	assert.InDelta(t, 0.08, *records[0].OutcomeReturn, 1e-9)
}

func TestReflectByRunMap(t *testing.T) {
	invoker := &echoInvoker{}
	g, _ := newTestGraph(t, Config{MaxDebateRounds: 1, MaxRiskRounds: 1}, invoker)

	ctx := context.Background()
	first, _, err := g.Propagate(ctx, "NVDA", "2024-05-10")
	require.NoError(t, err)
	second, _, err := g.Propagate(ctx, "AMD", "2024-05-10")
	require.NoError(t, err)

	err = g.ReflectAndRemember(ctx, ReflectRequest{ByRun: map[string]float64{
		first.RunID:  0.10,
		second.RunID: -0.02,
		"missing":    1.0,
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrNoMatchingRecord)

	// The two real runs were still resolved.
	err = g.ReflectAndRemember(ctx, ReflectRequest{RunID: first.RunID, Return: 0})
	assert.ErrorIs(t, err, memory.ErrAlreadyReflected)
}

func TestReflectWithEmptyStore(t *testing.T) {
	invoker := &echoInvoker{}
	g, _ := newTestGraph(t, Config{MaxDebateRounds: 1, MaxRiskRounds: 1}, invoker)

	err := g.ReflectAndRemember(context.Background(), ReflectRequest{Return: 0.5})
	assert.ErrorIs(t, err, memory.ErrNoMatchingRecord)
}

func TestCancelledContextDiscardsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	invoker := &echoInvoker{}
	g, store := newTestGraph(t, Config{MaxDebateRounds: 1, MaxRiskRounds: 1}, invoker)

	state, _, err := g.Propagate(ctx, "NVDA", "2024-05-10")
	require.Error(t, err)
	assert.Nil(t, state)
	assert.ErrorIs(t, err, context.Canceled)

	records, err := store.RetrieveSimilar(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPropagateManyIsolatesFailures(t *testing.T) {
	invoker := &echoInvoker{failOn: agent.RoleFundamentalsAnalyst, failErr: errors.New("boom")}
	okInvoker := &echoInvoker{}

	g, _ := newTestGraph(t, Config{MaxDebateRounds: 1, MaxRiskRounds: 1}, okInvoker)
	results := g.PropagateMany(context.Background(), []string{"NVDA", "AMD"}, "2024-05-10")
	require.Len(t, results, 2)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.Equal(t, decision.ActionHold, res.Decision.Action)
	}

	failing, _ := newTestGraph(t, Config{MaxDebateRounds: 1, MaxRiskRounds: 1}, invoker)
	results = failing.PropagateMany(context.Background(), []string{"NVDA"}, "2024-05-10")
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Nil(t, results[0].State)
}

func TestEmptySymbolRejected(t *testing.T) {
	g, _ := newTestGraph(t, Config{}, &echoInvoker{})
	_, _, err := g.Propagate(context.Background(), "  ", "2024-05-10")
	assert.Error(t, err)
	_, _, err = g.Propagate(context.Background(), "NVDA", "")
	assert.Error(t, err)
}
