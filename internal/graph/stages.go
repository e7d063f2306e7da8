package graph

import "council/internal/agent"

// StageDescriptor statically binds a pipeline stage to the role that
// produces it, the model tier it is routed to, and whether it may use
// external data tools. The list is fixed; stage order is enforced by
// construction, not at runtime.
type StageDescriptor struct {
	Name  StageName
	Role  agent.Role
	Tier  agent.Tier
	Tools bool
}

// analystStages is the sequential front of the pipeline. All four run on
// the quick tier and may call data-fetch tools when online mode is enabled.
var analystStages = []StageDescriptor{
	{Name: StageMarketReport, Role: agent.RoleMarketAnalyst, Tier: agent.TierQuick, Tools: true},
	{Name: StageSentimentReport, Role: agent.RoleSentimentAnalyst, Tier: agent.TierQuick, Tools: true},
	{Name: StageNewsReport, Role: agent.RoleNewsAnalyst, Tier: agent.TierQuick, Tools: true},
	{Name: StageFundamentalsReport, Role: agent.RoleFundamentalsAnalyst, Tier: agent.TierQuick, Tools: true},
}

var traderStage = StageDescriptor{
	Name: StageTraderPlan, Role: agent.RoleTrader, Tier: agent.TierQuick,
}

var finalStage = StageDescriptor{
	Name: StageFinalDecision, Role: agent.RolePortfolioManager, Tier: agent.TierDeep,
}

// DefaultRiskRoles is the full risk-review bench; config may select a
// subset of at least two.
var DefaultRiskRoles = []agent.Role{
	agent.RoleRiskyDebater,
	agent.RoleSafeDebater,
	agent.RoleNeutralDebater,
}

// InvestmentDebateRoles is fixed: the research debate is always bull
// against bear.
var InvestmentDebateRoles = []agent.Role{
	agent.RoleBullResearcher,
	agent.RoleBearResearcher,
}
