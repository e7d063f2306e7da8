package app

import (
	"context"
	"fmt"

	"council/internal/config"
	"council/internal/graph"
	"council/internal/logger"
	"council/internal/memory"
	"council/internal/store/runlog"
	apihttp "council/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App owns the wired object graph: config, memory, journal, the
// propagation graph and the HTTP server.
type App struct {
	cfg     *config.Config
	graph   *graph.Graph
	memory  memory.Store
	runs    *runlog.Store
	httpSrv *apihttp.Server
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Graph exposes the propagation graph for one-shot CLI runs.
func (a *App) Graph() *graph.Graph {
	if a == nil {
		return nil
	}
	return a.graph
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.httpSrv == nil {
		return fmt.Errorf("http server not initialized")
	}
	logger.Infof("serving on %s (memory backend=%s)", a.httpSrv.Addr(), a.cfg.Memory.Backend)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()
	a.Close()
	return err
}

// Close releases the stores.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.memory != nil {
		if err := a.memory.Close(); err != nil {
			logger.Warnf("closing memory store: %v", err)
		}
	}
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			logger.Warnf("closing run journal: %v", err)
		}
	}
}
