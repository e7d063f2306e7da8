package agent

import "fmt"

// Role is a closed enumeration of the reasoning personas the graph can
// invoke. Dispatch is always by Role value, never by open-ended objects.
type Role string

const (
	RoleMarketAnalyst       Role = "market_analyst"
	RoleSentimentAnalyst    Role = "sentiment_analyst"
	RoleNewsAnalyst         Role = "news_analyst"
	RoleFundamentalsAnalyst Role = "fundamentals_analyst"
	RoleBullResearcher      Role = "bull_researcher"
	RoleBearResearcher      Role = "bear_researcher"
	RoleResearchManager     Role = "research_manager"
	RoleTrader              Role = "trader"
	RoleRiskyDebater        Role = "risky_debater"
	RoleSafeDebater         Role = "safe_debater"
	RoleNeutralDebater      Role = "neutral_debater"
	RoleRiskJudge           Role = "risk_judge"
	RolePortfolioManager    Role = "portfolio_manager"
)

// Tier selects the model-capability class a role is routed to.
type Tier string

const (
	TierQuick Tier = "quick"
	TierDeep  Tier = "deep"
)

var allRoles = map[Role]bool{
	RoleMarketAnalyst:       true,
	RoleSentimentAnalyst:    true,
	RoleNewsAnalyst:         true,
	RoleFundamentalsAnalyst: true,
	RoleBullResearcher:      true,
	RoleBearResearcher:      true,
	RoleResearchManager:     true,
	RoleTrader:              true,
	RoleRiskyDebater:        true,
	RoleSafeDebater:         true,
	RoleNeutralDebater:      true,
	RoleRiskJudge:           true,
	RolePortfolioManager:    true,
}

// ParseRole validates a configured role name against the closed set.
func ParseRole(name string) (Role, error) {
	r := Role(name)
	if !allRoles[r] {
		return "", fmt.Errorf("unknown agent role %q", name)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }
