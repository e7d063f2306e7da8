package config

import (
	"os"
	"path/filepath"
	"testing"

	"council/internal/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
models:
  quick:
    api_url: "https://api.example.com/v1"
    api_key: "sk-test"
    model: "small-model"
`

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, 1, cfg.Graph.MaxDebateRounds)
	assert.Equal(t, 1, cfg.Graph.MaxRiskRounds)
	assert.Equal(t, 2, cfg.Graph.MemoryTopK)
	assert.Equal(t, "sqlite", cfg.Memory.Backend)
	assert.Equal(t, 60, cfg.Models.Quick.TimeoutSeconds)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, "https://fapi.binance.com", cfg.Market.RESTBaseURL)
}

func TestLoadIncludeMerge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "models.yaml", minimalYAML)
	path := writeFile(t, dir, "config.yaml", `
include:
  - models.yaml
graph:
  max_debate_rounds: 3
  risk_roles: ["risky_debater", "safe_debater"]
memory:
  backend: "chromem"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "small-model", cfg.Models.Quick.Model)
	assert.Equal(t, 3, cfg.Graph.MaxDebateRounds)
	assert.Equal(t, "chromem", cfg.Memory.Backend)
	assert.Equal(t, []agent.Role{agent.RoleRiskyDebater, agent.RoleSafeDebater}, cfg.Graph.RiskRoleList())
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: [\"b.yaml\"]\n")
	path := writeFile(t, dir, "b.yaml", "include: [\"a.yaml\"]\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestValidationRejectsMissingQuickModel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "app:\n  env: prod\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "models.quick")
}

func TestValidationRejectsUnknownRiskRole(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", minimalYAML+`
graph:
  risk_roles: ["gambler"]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk_roles")
}

func TestValidationRejectsBadBackend(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", minimalYAML+`
memory:
  backend: "redis"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory.backend")
}
