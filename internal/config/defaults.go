package config

import "strings"

const (
	defaultAppEnv         = "dev"
	defaultAppLogLevel    = "info"
	defaultAppHTTPAddr    = ":9980"
	defaultAppLogPath     = "/data/logs/council.log"
	defaultAppLLMLogPath  = "/data/logs/council-llm.log"
	defaultDebateRounds   = 1
	defaultRiskRounds     = 1
	defaultMemoryTopK     = 2
	defaultMemoryBackend  = "sqlite"
	defaultMemoryPath     = "/data/db/memory.db"
	defaultJournalPath    = "/data/db/runs.db"
	defaultMarketREST     = "https://fapi.binance.com"
	defaultMarketTimeout  = 15
	defaultModelTimeout   = 60
	defaultEmbedTimeout   = 30
	defaultEmbeddingModel = "text-embedding-3-small"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Graph.applyDefaults(keys)
	c.Models.applyDefaults(keys)
	c.Embedding.applyDefaults(keys)
	c.Memory.applyDefaults(keys)
	c.Journal.applyDefaults(keys)
	c.Market.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLogPath),
	)
}

func (g *GraphConfig) applyDefaults(keys keySet) {
	if g == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "graph.max_debate_rounds",
			need:  func() bool { return g.MaxDebateRounds <= 0 },
			apply: func() { g.MaxDebateRounds = defaultDebateRounds },
		},
		fieldDefault{
			key:   "graph.max_risk_rounds",
			need:  func() bool { return g.MaxRiskRounds <= 0 },
			apply: func() { g.MaxRiskRounds = defaultRiskRounds },
		},
		fieldDefault{
			key:   "graph.memory_top_k",
			need:  func() bool { return g.MemoryTopK <= 0 },
			apply: func() { g.MemoryTopK = defaultMemoryTopK },
		},
	)
}

func (m *ModelsConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	m.Quick.applyDefaults(keys, "models.quick")
	m.Deep.applyDefaults(keys, "models.deep")
}

func (m *ModelConfig) applyDefaults(keys keySet, prefix string) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   prefix + ".timeout_seconds",
			need:  func() bool { return m.TimeoutSeconds <= 0 },
			apply: func() { m.TimeoutSeconds = defaultModelTimeout },
		},
	)
}

func (e *EmbeddingConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("embedding.model", &e.Model, defaultEmbeddingModel),
		fieldDefault{
			key:   "embedding.timeout_seconds",
			need:  func() bool { return e.TimeoutSeconds <= 0 },
			apply: func() { e.TimeoutSeconds = defaultEmbedTimeout },
		},
	)
}

func (m *MemoryConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("memory.backend", &m.Backend, defaultMemoryBackend),
		stringFieldDefault("memory.path", &m.Path, defaultMemoryPath),
	)
}

func (j *JournalConfig) applyDefaults(keys keySet) {
	if j == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("journal.path", &j.Path, defaultJournalPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		fieldDefault{
			key:   "market.timeout_seconds",
			need:  func() bool { return m.TimeoutSeconds <= 0 },
			apply: func() { m.TimeoutSeconds = defaultMarketTimeout },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
