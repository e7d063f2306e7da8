package graph

import (
	"context"
	"fmt"
	"strings"

	"council/internal/agent"
	"council/internal/debate"
	"council/internal/decision"
	"council/internal/logger"
	"council/internal/memory"
)

// Config is the orchestrator's immutable run configuration, passed in at
// construction; there is no ambient/global lookup.
type Config struct {
	// MaxDebateRounds bounds the bull/bear research debate (>= 1).
	MaxDebateRounds int
	// MaxRiskRounds bounds the risk-adjustment debate (>= 1).
	MaxRiskRounds int
	// RiskRoles selects the risk bench; defaults to all three stances.
	RiskRoles []agent.Role
	// MemoryTopK is how many past situations are retrieved as context.
	MemoryTopK int
	// OnlineTools lets analyst stages call external data-fetch tools.
	OnlineTools bool
	// Debug emits full intermediate outputs and transcripts to the log.
	Debug bool
}

func (c Config) withDefaults() Config {
	if c.MaxDebateRounds < 1 {
		c.MaxDebateRounds = 1
	}
	if c.MaxRiskRounds < 1 {
		c.MaxRiskRounds = 1
	}
	if len(c.RiskRoles) < 2 {
		c.RiskRoles = DefaultRiskRoles
	}
	if c.MemoryTopK <= 0 {
		c.MemoryTopK = memory.DefaultTopK
	}
	return c
}

// Toolkit is the optional external data-fetch capability analyst stages may
// use. Tool output is advisory stage context; a tool failure degrades the
// context but never aborts the run, unlike an agent invocation failure.
type Toolkit interface {
	MarketContext(ctx context.Context, symbol, date string) (string, error)
}

// Orchestrator sequences one run: analyst stages, the research debate, the
// trader stage, the risk debate, final aggregation. Strictly sequential by
// design; debate coherence requires every turn to see all prior turns.
type Orchestrator struct {
	cfg     Config
	invoker agent.Invoker
	prompts debate.PromptSource
	debates *debate.Controller
	store   memory.Store
	toolkit Toolkit
}

// NewOrchestrator wires the orchestrator. toolkit may be nil (offline mode).
func NewOrchestrator(cfg Config, invoker agent.Invoker, prompts debate.PromptSource, store memory.Store, toolkit Toolkit) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg.withDefaults(),
		invoker: invoker,
		prompts: prompts,
		debates: debate.NewController(invoker, prompts),
		store:   store,
		toolkit: toolkit,
	}
}

// Run executes the full pipeline for one (symbol, date) pair. A fresh
// RunState is created per call. The first failed invocation aborts the run
// with a *StageFailure and the state is discarded by the caller; an
// incomplete run is an error, not a value.
func (o *Orchestrator) Run(ctx context.Context, runID, symbol, date string) (*RunState, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}
	if strings.TrimSpace(date) == "" {
		return nil, fmt.Errorf("trade date cannot be empty")
	}
	state := &RunState{RunID: runID, Symbol: symbol, Date: date}

	for _, stage := range analystStages {
		if err := o.runAnalystStage(ctx, stage, state); err != nil {
			return nil, err
		}
	}

	situation := state.analystReports()
	memories, err := o.store.RetrieveSimilar(ctx, situation, o.cfg.MemoryTopK)
	if err != nil {
		return nil, &StageFailure{Stage: StageMemoryRetrieval, Cause: err}
	}
	logger.Debugf("run %s: retrieved %d past situations", runID, len(memories))

	shared := o.sharedContext(state, memories)

	transcript, plan, err := o.debates.Run(ctx, debate.Config{
		MaxRounds: o.cfg.MaxDebateRounds,
		Roles:     InvestmentDebateRoles,
		Tier:      agent.TierQuick,
		Judge:     agent.RoleResearchManager,
		JudgeTier: agent.TierDeep,
	}, shared)
	if err != nil {
		return nil, &StageFailure{Stage: StageInvestmentPlan, Cause: err}
	}
	state.DebateTranscript = transcript
	if err := state.setStageOutput(StageInvestmentPlan, plan); err != nil {
		return nil, err
	}
	o.logStage(state, StageInvestmentPlan, plan)

	if err := o.runStage(ctx, traderStage, state, o.traderPrompt(state, shared)); err != nil {
		return nil, err
	}

	riskShared := o.riskContext(state, shared)
	riskTranscript, assessment, err := o.debates.Run(ctx, debate.Config{
		MaxRounds: o.cfg.MaxRiskRounds,
		Roles:     o.cfg.RiskRoles,
		Tier:      agent.TierQuick,
		Judge:     agent.RoleRiskJudge,
		JudgeTier: agent.TierDeep,
	}, riskShared)
	if err != nil {
		return nil, &StageFailure{Stage: StageRiskAssessment, Cause: err}
	}
	state.RiskTranscript = riskTranscript
	if err := state.setStageOutput(StageRiskAssessment, assessment); err != nil {
		return nil, err
	}
	o.logStage(state, StageRiskAssessment, assessment)

	if err := o.runStage(ctx, finalStage, state, o.finalPrompt(state, shared)); err != nil {
		return nil, err
	}
	finalText, _ := state.StageOutput(StageFinalDecision)
	final, err := decision.Extract(finalText)
	if err != nil {
		return nil, &StageFailure{Stage: StageFinalDecision, Cause: err}
	}
	state.Decision = &final
	logger.Infof("run %s: %s %s -> %s", runID, symbol, date, final.Action)
	return state, nil
}

func (o *Orchestrator) runAnalystStage(ctx context.Context, stage StageDescriptor, state *RunState) error {
	toolNote := ""
	if stage.Tools && o.cfg.OnlineTools && o.toolkit != nil {
		note, err := o.toolkit.MarketContext(ctx, state.Symbol, state.Date)
		if err != nil {
			logger.Warnf("stage %s: tool fetch degraded: %v", stage.Name, err)
			note = "(external data fetch unavailable)"
		}
		toolNote = note
	}
	return o.runStage(ctx, stage, state, o.analystPrompt(stage, state, toolNote))
}

func (o *Orchestrator) runStage(ctx context.Context, stage StageDescriptor, state *RunState, user string) error {
	if err := ctx.Err(); err != nil {
		return &StageFailure{Stage: stage.Name, Cause: err}
	}
	text, err := o.invoker.Invoke(ctx, agent.Request{
		Role:         stage.Role,
		Tier:         stage.Tier,
		System:       o.prompts.System(stage.Role),
		User:         user,
		ToolsEnabled: stage.Tools && o.cfg.OnlineTools,
	})
	if err != nil {
		return &StageFailure{Stage: stage.Name, Cause: err}
	}
	if err := state.setStageOutput(stage.Name, text); err != nil {
		return err
	}
	o.logStage(state, stage.Name, text)
	return nil
}

func (o *Orchestrator) logStage(state *RunState, name StageName, text string) {
	if o.cfg.Debug {
		logger.Infof("run %s stage %s:\n%s", state.RunID, name, text)
		return
	}
	logger.Debugf("run %s stage %s produced %d chars", state.RunID, name, len(text))
}

func (o *Orchestrator) analystPrompt(stage StageDescriptor, state *RunState, toolNote string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instrument: %s\nTrade date: %s\n", state.Symbol, state.Date)
	if prior := state.analystReports(); prior != "" {
		b.WriteString("\n## Reports so far\n")
		b.WriteString(prior)
		b.WriteString("\n")
	}
	if toolNote != "" {
		b.WriteString("\n## Fetched market data\n")
		b.WriteString(toolNote)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nWrite the %s.\n", stage.Name)
	return b.String()
}

func (o *Orchestrator) sharedContext(state *RunState, memories []memory.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instrument: %s\nTrade date: %s\n\n## Analyst reports\n%s\n", state.Symbol, state.Date, state.analystReports())
	b.WriteString("\n## Similar past situations\n")
	if len(memories) == 0 {
		b.WriteString("(none on record)\n")
	}
	for i, rec := range memories {
		outcome := "outcome pending"
		if rec.OutcomeReturn != nil {
			outcome = fmt.Sprintf("realized return %.4f", *rec.OutcomeReturn)
		}
		fmt.Fprintf(&b, "%d. [%s %s] decided %s (%s): %s\n",
			i+1, rec.Symbol, rec.TradeDate, rec.Decision.Action, outcome, rec.SituationText)
	}
	return b.String()
}

func (o *Orchestrator) traderPrompt(state *RunState, shared string) string {
	plan, _ := state.StageOutput(StageInvestmentPlan)
	return shared + "\n## Investment plan\n" + plan +
		"\n\nTurn the plan into a concrete position recommendation.\n"
}

func (o *Orchestrator) riskContext(state *RunState, shared string) string {
	plan, _ := state.StageOutput(StageInvestmentPlan)
	traderPlan, _ := state.StageOutput(StageTraderPlan)
	return shared + "\n## Investment plan\n" + plan + "\n## Trader plan\n" + traderPlan
}

func (o *Orchestrator) finalPrompt(state *RunState, shared string) string {
	var b strings.Builder
	b.WriteString(shared)
	for _, name := range []StageName{StageInvestmentPlan, StageTraderPlan, StageRiskAssessment} {
		text, _ := state.StageOutput(name)
		fmt.Fprintf(&b, "\n## %s\n%s\n", name, text)
	}
	b.WriteString("\n## Research debate transcript\n")
	b.WriteString(debate.RenderTranscript(state.DebateTranscript))
	b.WriteString("\n## Risk debate transcript\n")
	b.WriteString(debate.RenderTranscript(state.RiskTranscript))
	b.WriteString("\nIssue the final decision.\n")
	return b.String()
}
