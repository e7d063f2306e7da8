package config

import (
	"fmt"
	"strings"

	"council/internal/agent"
)

func validate(c *Config) error {
	if err := c.Graph.validate(); err != nil {
		return err
	}
	if err := c.Models.validate(); err != nil {
		return err
	}
	if err := c.Memory.validate(); err != nil {
		return err
	}
	return nil
}

func (g *GraphConfig) validate() error {
	if g.MaxDebateRounds < 1 {
		return fmt.Errorf("graph.max_debate_rounds must be >= 1")
	}
	if g.MaxRiskRounds < 1 {
		return fmt.Errorf("graph.max_risk_rounds must be >= 1")
	}
	if g.MemoryTopK < 0 {
		return fmt.Errorf("graph.memory_top_k must be >= 0")
	}
	for _, name := range g.RiskRoles {
		if _, err := agent.ParseRole(name); err != nil {
			return fmt.Errorf("graph.risk_roles: %w", err)
		}
	}
	if len(g.RiskRoles) == 1 {
		return fmt.Errorf("graph.risk_roles needs at least two stances")
	}
	return nil
}

// RiskRoleList maps the configured names onto agent roles.
func (g GraphConfig) RiskRoleList() []agent.Role {
	out := make([]agent.Role, 0, len(g.RiskRoles))
	for _, name := range g.RiskRoles {
		role, err := agent.ParseRole(name)
		if err != nil {
			continue
		}
		out = append(out, role)
	}
	return out
}

func (m *ModelsConfig) validate() error {
	if m.Quick.empty() {
		return fmt.Errorf("models.quick is required")
	}
	if strings.TrimSpace(m.Quick.Model) == "" {
		return fmt.Errorf("models.quick.model is required")
	}
	if !m.Deep.empty() && strings.TrimSpace(m.Deep.Model) == "" {
		return fmt.Errorf("models.deep.model is required when models.deep is set")
	}
	return nil
}

func (m *MemoryConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(m.Backend)) {
	case "", "sqlite", "chromem", "memory":
	default:
		return fmt.Errorf("memory.backend must be sqlite, chromem or memory")
	}
	if strings.EqualFold(m.Backend, "sqlite") && strings.TrimSpace(m.Path) == "" {
		return fmt.Errorf("memory.path is required for the sqlite backend")
	}
	return nil
}
