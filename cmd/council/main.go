package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"council/internal/app"
	"council/internal/config"
	"council/internal/logger"
)

func main() {
	var (
		symbolsFlag = flag.String("symbols", "", "comma separated symbols for a one-shot run (skips the server)")
		dateFlag    = flag.String("date", "", "trade date (YYYY-MM-DD) for a one-shot run")
	)
	flag.Parse()

	cfgPath := os.Getenv("COUNCIL_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}

	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("initializing log file failed: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLLMWriter(nil)
	if cfg.App.Debug {
		f, err := setupLLMLogOutput(cfg.App.LLMLog)
		if err != nil {
			log.Fatalf("initializing llm transcript log failed: %v", err)
		}
		if f != nil {
			defer f.Close()
		}
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("config loaded (env=%s, memory backend=%s)", cfg.App.Env, cfg.Memory.Backend)

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("initializing app failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *symbolsFlag != "" {
		runOnce(ctx, a, *symbolsFlag, *dateFlag)
		return
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("serving failed: %v", err)
	}
}

func runOnce(ctx context.Context, a *app.App, symbolList, date string) {
	defer a.Close()
	if date == "" {
		log.Fatalf("-date is required for a one-shot run")
	}
	var symbols []string
	for _, s := range strings.Split(symbolList, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	results := a.Graph().PropagateMany(ctx, symbols, date)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			logger.Errorf("%s: run failed: %v", res.Symbol, res.Err)
			continue
		}
		logger.Infof("%s: %s (run=%s)", res.Symbol, res.Decision.Action, res.State.RunID)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

func setupLLMLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logger.SetLLMWriter(f)
	return f, nil
}
