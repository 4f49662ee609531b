package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ruleengine/pkg/cli"
	"mercator-hq/ruleengine/pkg/config"
	"mercator-hq/ruleengine/pkg/engine"
	"mercator-hq/ruleengine/pkg/store"
	"mercator-hq/ruleengine/pkg/telemetry/logging"
	"mercator-hq/ruleengine/pkg/telemetry/metrics"
	"mercator-hq/ruleengine/pkg/telemetry/tracing"
)

// app holds everything a command needs to work with stored rules.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	store   store.Store
	engine  *engine.Engine
}

// loadConfig reads --config and RULES_* overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg; --verbose forces debug.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logCfg := logging.FromConfig(cfg.Telemetry.Logging, os.Stderr)
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	slog.SetDefault(logger)
	return logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	st, err := store.Open(ctx, storeOptions(&cfg.Store), logger)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(collector),
		engine.WithTracer(tracer),
	}
	if cfg.Registry.Enabled {
		opts = append(opts, engine.WithRegistry())
	}
	eng, err := engine.New(&cfg.Engine, st, opts...)
	if err != nil {
		_ = st.Close()
		_ = tracer.Shutdown(ctx)
		return nil, err
	}

	logger.Debug("rulectl initialized",
		"version", Version,
		"store", cfg.Store.Backend,
		"registry", cfg.Registry.Enabled,
		"tracing", tracer.Enabled(),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		tracer:  tracer,
		store:   st,
		engine:  eng,
	}, nil
}

// Close releases the store and flushes pending spans.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	storeErr := a.store.Close()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush traces", "error", err)
	}
	return storeErr
}

// withApp runs fn with an initialized app, continuing any trace handed
// over in TRACEPARENT.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.ContextFromEnvironment(ctx)
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func storeOptions(cfg *config.StoreConfig) store.Options {
	return store.Options{
		Backend: cfg.Backend,
		Dir:     cfg.File.Dir,
		SQLite: &store.SQLiteConfig{
			Driver:       cfg.SQLite.Driver,
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
			Compression:  cfg.SQLite.Compression,
		},
	}
}
