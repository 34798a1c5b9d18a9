package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/batchcsv/internal/config"
	"github.com/JonMunkholm/batchcsv/internal/core"
	"github.com/JonMunkholm/batchcsv/internal/logging"
	"github.com/JonMunkholm/batchcsv/internal/metrics"
	"github.com/JonMunkholm/batchcsv/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"phases", strings.Join(cfg.Batch.RunPhases(), ","),
		"chunk_size", cfg.Batch.ChunkSize,
		"source", cfg.Batch.SourcePath,
		"dest", cfg.Batch.DestPath,
		"table", cfg.Database.Table,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	// Cancel between chunks on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return 1
	}
	defer pool.Close()

	customers, err := store.New(pool, store.Options{
		Table:    cfg.Database.Table,
		PageSize: cfg.Batch.ExportPageSize,
	})
	if err != nil {
		slog.Error("failed to create store", "error", err)
		return 1
	}
	if cfg.Database.CreateTable {
		if err := customers.EnsureTable(ctx); err != nil {
			slog.Error("failed to create table", "table", customers.Table(), "error", err)
			return 1
		}
	}

	phases := make([]core.Phase, 0, len(cfg.Batch.Phases))
	for _, name := range cfg.Batch.RunPhases() {
		phase, err := core.PhaseByName(name)
		if err != nil {
			slog.Error("invalid phase", "error", err)
			return 1
		}
		phases = append(phases, phase)
	}

	importTransform, err := buildImportTransform(cfg.Batch)
	if err != nil {
		slog.Error("invalid import transform", "error", err)
		return 1
	}

	collector := metrics.New()
	jobCfg := core.JobConfig{
		Store:           customers,
		SourcePath:      cfg.Batch.SourcePath,
		DestPath:        cfg.Batch.DestPath,
		Delimiter:       cfg.Batch.DelimiterRune(),
		Strict:          cfg.Batch.Strict(),
		ExportHeader:    cfg.Batch.ExportHeader,
		ChunkSize:       cfg.Batch.ChunkSize,
		Phases:          phases,
		ImportTransform: importTransform,
		Metrics:         collector,
	}
	if cfg.Metrics.Progress {
		jobCfg.OnProgress = newProgressReporter(os.Stderr).OnProgress
	}

	job, err := core.NewJob(jobCfg)
	if err != nil {
		slog.Error("failed to create job", "error", err)
		return 1
	}

	report, runErr := job.Run(ctx)
	logReport(report)

	if cfg.Metrics.File != "" {
		if err := collector.WriteFile(cfg.Metrics.File); err != nil {
			slog.Warn("failed to write metrics", "path", cfg.Metrics.File, "error", err)
		}
	}

	if runErr != nil {
		logFailure(os.Stderr, report.RunID, runErr)
		return 1
	}
	if !report.Succeeded() {
		return 1
	}
	return 0
}

// buildImportTransform chains the configured built-in transforms, then the
// duplicate check when DUPLICATE_POLICY=error.
func buildImportTransform(cfg config.BatchConfig) (core.Transform, error) {
	var ts []core.Transform
	for _, name := range cfg.Transforms() {
		t, err := core.TransformByName(name)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	if cfg.RejectDuplicates() {
		ts = append(ts, core.RejectDuplicates())
	}
	return core.Chain(ts...), nil
}

// connect opens and verifies the connection pool.
func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// logReport writes the end-of-run summary, one line per phase that ran.
func logReport(report core.JobReport) {
	for _, p := range report.Phases {
		slog.Info("phase summary",
			"run_id", report.RunID,
			"phase", p.Phase,
			"state", p.State,
			"read", p.Read,
			"written", p.Written,
			"commits", p.Commits,
			"duration", p.Duration,
		)
	}
	slog.Info("job summary",
		"run_id", report.RunID,
		"job", core.JobName,
		"succeeded", report.Succeeded(),
		"phases", len(report.Phases),
		"duration", report.Duration,
	)
}

// logFailure logs the structured description of an aborted run and writes
// the operator message to w.
func logFailure(w io.Writer, runID string, err error) {
	msg := core.MapError(err)
	attrs := []any{
		"run_id", runID,
		"code", msg.Code,
		"message", msg.Message,
		"action", msg.Action,
	}

	var pe *core.PhaseError
	if errors.As(err, &pe) {
		attrs = append(attrs, "phase", pe.Phase, "chunk", pe.Chunk, "offset", pe.Offset)
		if line := pe.Line(); line > 0 {
			attrs = append(attrs, "line", line)
		}
	}

	attrs = append(attrs, "error", err)
	slog.Error("job failed", attrs...)
	fmt.Fprintln(w, core.FormatUserError(err))
}
