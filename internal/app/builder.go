package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"council/internal/agent"
	"council/internal/config"
	"council/internal/gateway/binance"
	"council/internal/gateway/embedder"
	"council/internal/gateway/provider"
	"council/internal/graph"
	"council/internal/logger"
	"council/internal/memory"
	"council/internal/prompt"
	"council/internal/store/runlog"
	"council/internal/toolkit"
	apihttp "council/internal/transport/http/api"
)

// AppBuilder assembles the App. Construction steps are swappable so
// tests can inject stub models and in-process stores.
type AppBuilder struct {
	cfg *config.Config

	invokerFn  func(config.ModelsConfig) (agent.Invoker, error)
	embedderFn func(config.EmbeddingConfig) (agent.Embedder, error)
	toolkitFn  func(config.MarketConfig) (graph.Toolkit, error)
	memoryFn   func(config.MemoryConfig, agent.Embedder) (memory.Store, error)
	journalFn  func(config.JournalConfig) (*runlog.Store, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		invokerFn:  buildInvoker,
		embedderFn: buildEmbedder,
		toolkitFn:  buildToolkit,
		memoryFn:   buildMemoryStore,
		journalFn:  buildJournal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithInvoker overrides the model invoker, mainly for tests.
func WithInvoker(inv agent.Invoker) AppBuilderOption {
	return func(b *AppBuilder) {
		b.invokerFn = func(config.ModelsConfig) (agent.Invoker, error) { return inv, nil }
	}
}

// WithEmbedder overrides the embedding client, mainly for tests.
func WithEmbedder(e agent.Embedder) AppBuilderOption {
	return func(b *AppBuilder) {
		b.embedderFn = func(config.EmbeddingConfig) (agent.Embedder, error) { return e, nil }
	}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	invoker, err := b.invokerFn(cfg.Models)
	if err != nil {
		return nil, fmt.Errorf("building model invoker: %w", err)
	}
	emb, err := b.embedderFn(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}
	store, err := b.memoryFn(cfg.Memory, emb)
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}
	prompts, err := prompt.NewManager(cfg.Prompt.Path)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading prompts: %w", err)
	}

	var tk graph.Toolkit
	if cfg.Graph.OnlineTools {
		tk, err = b.toolkitFn(cfg.Market)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("building toolkit: %w", err)
		}
	}

	var runs *runlog.Store
	if cfg.Journal.Enabled {
		runs, err = b.journalFn(cfg.Journal)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("opening run journal: %w", err)
		}
	}

	graphCfg := graph.Config{
		MaxDebateRounds: cfg.Graph.MaxDebateRounds,
		MaxRiskRounds:   cfg.Graph.MaxRiskRounds,
		RiskRoles:       cfg.Graph.RiskRoleList(),
		MemoryTopK:      cfg.Graph.MemoryTopK,
		OnlineTools:     cfg.Graph.OnlineTools,
		Debug:           cfg.App.Debug,
	}
	var journal graph.Journal
	if runs != nil {
		journal = runs
	}
	g := graph.New(graphCfg, invoker, prompts, store, tk, journal)

	router := apihttp.NewRouter(g, store, runs)
	srv, err := apihttp.NewServer(apihttp.ServerConfig{Addr: cfg.App.HTTPAddr, Router: router})
	if err != nil {
		store.Close()
		if runs != nil {
			runs.Close()
		}
		return nil, fmt.Errorf("building http server: %w", err)
	}

	return &App{
		cfg:     cfg,
		graph:   g,
		memory:  store,
		runs:    runs,
		httpSrv: srv,
	}, nil
}

func buildInvoker(cfg config.ModelsConfig) (agent.Invoker, error) {
	quick := chatClient(cfg.Quick)
	var deep provider.Chatter
	if strings.TrimSpace(cfg.Deep.Model) != "" {
		deep = chatClient(cfg.Deep)
	}
	return provider.NewTierInvoker(quick, deep)
}

func chatClient(m config.ModelConfig) *provider.ChatClient {
	return &provider.ChatClient{
		BaseURL:      m.APIURL,
		APIKey:       m.APIKey,
		Model:        m.Model,
		Timeout:      time.Duration(m.TimeoutSeconds) * time.Second,
		MaxRetries:   m.MaxRetries,
		Temperature:  m.Temperature,
		ExtraHeaders: m.Headers,
	}
}

func buildEmbedder(cfg config.EmbeddingConfig) (agent.Embedder, error) {
	return embedder.New(embedder.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.APIURL,
		Model:   cfg.Model,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
}

func buildToolkit(cfg config.MarketConfig) (graph.Toolkit, error) {
	source, err := binance.New(binance.Config{
		RESTBaseURL:  cfg.RESTBaseURL,
		HTTPTimeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
		ProxyEnabled: cfg.Proxy.Enabled,
		RESTProxyURL: cfg.Proxy.RESTURL,
	})
	if err != nil {
		return nil, err
	}
	return toolkit.New(source), nil
}

func buildMemoryStore(cfg config.MemoryConfig, emb agent.Embedder) (memory.Store, error) {
	return memory.Open(memory.Options{Backend: cfg.Backend, Path: cfg.Path}, emb)
}

func buildJournal(cfg config.JournalConfig) (*runlog.Store, error) {
	return runlog.New(cfg.Path)
}
