package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/cryptoscanner/config"
	"github.com/alejandrodnm/cryptoscanner/internal/adapters/binance"
	"github.com/alejandrodnm/cryptoscanner/internal/adapters/fixture"
	"github.com/alejandrodnm/cryptoscanner/internal/adapters/llm"
	"github.com/alejandrodnm/cryptoscanner/internal/adapters/notify"
	"github.com/alejandrodnm/cryptoscanner/internal/adapters/storage"
	"github.com/alejandrodnm/cryptoscanner/internal/estimator"
	"github.com/alejandrodnm/cryptoscanner/internal/pipeline"
	"github.com/alejandrodnm/cryptoscanner/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one pipeline pass and exit")
	dryRun := flag.Bool("dry-run", false, "use local fixture headlines instead of real sources")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full signal table + per-event breakdown (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("cryptoscanner starting",
		"config", *configPath,
		"interval", cfg.ScanInterval(),
		"dry_run", *dryRun,
		"once", *once,
	)

	providers := make([]llm.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers = append(providers, llm.Provider{
			Name:   p.Name,
			URL:    p.URL,
			KeyEnv: p.KeyEnv,
			Model:  p.Model,
			RPM:    p.RPM,
		})
	}
	completer, err := llm.NewClient(providers, 0)
	if err != nil {
		slog.Error("failed to build LLM client", "err", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	var sources []ports.NewsSource
	if *dryRun {
		sources = []ports.NewsSource{fixture.NewSource(nil)}
	} else {
		sources = []ports.NewsSource{binance.NewClient(cfg.Sources.BinanceBaseURL)}
	}

	notifier := notify.NewConsole(*table)

	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.ScanInterval = cfg.ScanInterval()
	pipeCfg.EventBatch = cfg.Pipeline.EventBatch
	pipeCfg.SignalLimit = cfg.Pipeline.SignalLimit
	pipeCfg.SignalThreshold = cfg.Pipeline.SignalThreshold
	pipeCfg.SignalCap = cfg.Pipeline.SignalCap
	pipeCfg.DryRun = *dryRun || *once

	p := pipeline.New(
		pipeCfg,
		sources,
		store,
		completer,
		estimator.NewProbabilityEstimator(completer),
		estimator.NewImpactEstimator(completer),
		notifier,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := p.Run(ctx); err != nil {
		slog.Error("pipeline exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("cryptoscanner stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
