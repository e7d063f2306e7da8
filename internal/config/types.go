package config

import "strings"

// Config is the top level configuration.
type Config struct {
	App       AppConfig       `toml:"app"`
	Graph     GraphConfig     `toml:"graph"`
	Models    ModelsConfig    `toml:"models"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Memory    MemoryConfig    `toml:"memory"`
	Prompt    PromptConfig    `toml:"prompt"`
	Journal   JournalConfig   `toml:"journal"`
	Market    MarketConfig    `toml:"market"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	Debug    bool   `toml:"debug"`
}

// GraphConfig controls the propagation pipeline.
type GraphConfig struct {
	MaxDebateRounds int      `toml:"max_debate_rounds"`
	MaxRiskRounds   int      `toml:"max_risk_rounds"`
	RiskRoles       []string `toml:"risk_roles"`
	MemoryTopK      int      `toml:"memory_top_k"`
	OnlineTools     bool     `toml:"online_tools"`
}

// ModelsConfig names the two model tiers.
type ModelsConfig struct {
	Quick ModelConfig `toml:"quick"`
	Deep  ModelConfig `toml:"deep"`
}

// ModelConfig describes one OpenAI-compatible chat endpoint.
type ModelConfig struct {
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	Headers        map[string]string `toml:"headers"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	MaxRetries     int               `toml:"max_retries"`
	Temperature    float64           `toml:"temperature"`
}

func (m ModelConfig) empty() bool {
	return strings.TrimSpace(m.APIURL) == "" && strings.TrimSpace(m.Model) == ""
}

type EmbeddingConfig struct {
	APIURL         string `toml:"api_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type MemoryConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type PromptConfig struct {
	Path string `toml:"path"`
}

type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type MarketConfig struct {
	RESTBaseURL    string      `toml:"rest_base_url"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	Proxy          ProxyConfig `toml:"proxy"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

// keySet tracks field paths explicitly set in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes one field's default value rule.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
