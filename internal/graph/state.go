package graph

import (
	"fmt"
	"strings"

	"council/internal/debate"
	"council/internal/decision"
)

// StageName identifies one named text output of the pipeline.
type StageName string

const (
	StageMarketReport       StageName = "market_report"
	StageSentimentReport    StageName = "sentiment_report"
	StageNewsReport         StageName = "news_report"
	StageFundamentalsReport StageName = "fundamentals_report"
	StageInvestmentPlan     StageName = "investment_plan"
	StageTraderPlan         StageName = "trader_plan"
	StageRiskAssessment     StageName = "risk_assessment"
	StageFinalDecision      StageName = "final_decision"
	StageMemoryRetrieval    StageName = "memory_retrieval"
)

// StageOutput is one (stage, text) pair in pipeline order.
type StageOutput struct {
	Name StageName `json:"name"`
	Text string    `json:"text"`
}

// RunState is the mutable record threaded through one run. Created fresh per
// Propagate call, owned by the orchestrator until Run returns; nothing is
// shared between runs through it.
type RunState struct {
	RunID  string `json:"run_id"`
	Symbol string `json:"symbol"`
	Date   string `json:"date"`

	// StageOutputs in insertion order; each stage writes exactly once.
	StageOutputs []StageOutput `json:"stage_outputs"`

	DebateTranscript []debate.Turn `json:"debate_transcript"`
	RiskTranscript   []debate.Turn `json:"risk_transcript"`

	// Decision is nil until the final aggregation stage writes it.
	Decision *decision.Decision `json:"decision,omitempty"`
}

// setStageOutput appends a stage's text; writing a stage twice is a bug in
// stage ordering and reported as such.
func (s *RunState) setStageOutput(name StageName, text string) error {
	for _, out := range s.StageOutputs {
		if out.Name == name {
			return fmt.Errorf("stage %s already produced output", name)
		}
	}
	s.StageOutputs = append(s.StageOutputs, StageOutput{Name: name, Text: text})
	return nil
}

// StageOutput returns the named stage's text, if it was produced.
func (s *RunState) StageOutput(name StageName) (string, bool) {
	for _, out := range s.StageOutputs {
		if out.Name == name {
			return out.Text, true
		}
	}
	return "", false
}

// analystReports renders the four analyst outputs produced so far; it is
// both the debate's shared context base and the memory situation text.
func (s *RunState) analystReports() string {
	var b strings.Builder
	for _, out := range s.StageOutputs {
		switch out.Name {
		case StageMarketReport, StageSentimentReport, StageNewsReport, StageFundamentalsReport:
			fmt.Fprintf(&b, "### %s\n%s\n\n", out.Name, out.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
