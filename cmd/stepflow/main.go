package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rendis/stepflow/internal/engine"
	"github.com/rendis/stepflow/internal/executors"
	"github.com/rendis/stepflow/internal/expressions"
	"github.com/rendis/stepflow/internal/logging"
	"github.com/rendis/stepflow/internal/metrics"
	"github.com/rendis/stepflow/internal/scheduler"
	"github.com/rendis/stepflow/internal/store"
	"github.com/rendis/stepflow/internal/validation"
	"github.com/rendis/stepflow/pkg/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "stepflow: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := executors.NewRegistry()
	if err := executors.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("register builtin executors: %w", err)
	}

	validator, err := validation.NewValidator()
	if err != nil {
		return fmt.Errorf("create validator: %w", err)
	}

	conditions, err := expressions.NewCELEngine()
	if err != nil {
		return fmt.Errorf("create condition evaluator: %w", err)
	}

	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, promReg, logger)
	}

	orch := engine.New(st, registry, validator, conditions, collector, logger, engine.Config{
		PoolSize:       cfg.PoolSize,
		RunTimeout:     duration(cfg.RunTimeout),
		StuckThreshold: duration(cfg.StuckThreshold),
	})
	defer orch.Shutdown()

	sched := scheduler.NewScheduler(st, &schedulerRunner{orch: orch}, logger)
	if cfg.Scheduler {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	srv := mcp.NewStepflowServer(mcp.StepflowServerDeps{
		Orchestrator: orch,
		Store:        st,
		Registry:     registry,
		Scheduler:    sched,
		Logger:       logger,
	})

	logger.Info("stepflow MCP server listening on stdio")
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newLogger builds the process logger. Logs go to stderr: stdout carries the
// MCP stdio transport.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(logging.NewCorrelationHandler(inner))
	slog.SetDefault(logger)
	return logger
}

// openStore opens the configured store. An empty or "memory" db_path selects
// the in-memory store.
func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DBPath == "" || cfg.DBPath == "memory" {
		logger.Info("using in-memory store")
		return store.NewMemoryStore(), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	logger.Info("store opened", slog.String("db_path", cfg.DBPath))
	return st, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("metrics server listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", slog.String("error", err.Error()))
	}
}

// schedulerRunner adapts the orchestrator to the scheduler's runner
// interface, dropping the run summary the scheduler has no use for.
type schedulerRunner struct {
	orch *engine.Orchestrator
}

func (r *schedulerRunner) CloneAndExecute(ctx context.Context, workflowID string) error {
	_, err := r.orch.CloneAndExecute(ctx, workflowID)
	return err
}
