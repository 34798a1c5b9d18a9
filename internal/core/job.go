package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/batchcsv/internal/logging"
)

// JobConfig holds everything a Job needs. All dependencies are passed in;
// nothing is looked up globally.
type JobConfig struct {
	Store        Store
	SourcePath   string
	DestPath     string
	Delimiter    rune
	Columns      []string // Import column order (default CustomerColumns())
	Strict       bool     // Fail ragged import rows
	ExportHeader bool     // Write the column names line before exported records
	ChunkSize    int
	Phases       []Phase // Phases to run in order (default import then export)

	// Transforms applied per phase (default Identity). A stateful transform
	// such as RejectDuplicates must be built fresh for each Job.Run.
	ImportTransform Transform
	ExportTransform Transform

	OnProgress ProgressCallback
	Metrics    RunMetrics
}

// Job runs the import and export phases sequentially.
type Job struct {
	cfg JobConfig
}

// NewJob validates cfg and creates a job.
func NewJob(cfg JobConfig) (*Job, error) {
	if len(cfg.Phases) == 0 {
		cfg.Phases = []Phase{PhaseImport, PhaseExport}
	}
	for _, p := range cfg.Phases {
		switch p {
		case PhaseImport:
			if cfg.SourcePath == "" {
				return nil, fmt.Errorf("%s: source path is required", p)
			}
		case PhaseExport:
			if cfg.DestPath == "" {
				return nil, fmt.Errorf("%s: destination path is required", p)
			}
		default:
			return nil, fmt.Errorf("unknown phase %q", p)
		}
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &Job{cfg: cfg}, nil
}

// PhaseByName resolves the short names used in configuration.
func PhaseByName(name string) (Phase, error) {
	switch name {
	case "import", string(PhaseImport):
		return PhaseImport, nil
	case "export", string(PhaseExport):
		return PhaseExport, nil
	}
	return "", fmt.Errorf("unknown phase %q", name)
}

// Run executes the configured phases in order under a fresh run id. It stops
// at the first aborted phase; later phases do not run. The report lists
// every phase that ran.
func (j *Job) Run(ctx context.Context) (JobReport, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithFields(ctx, "job", JobName)

	report := JobReport{RunID: runID}
	logger.Info("job started", "phases", len(j.cfg.Phases))

	for _, phase := range j.cfg.Phases {
		src, sink, tr := j.endpoints(phase)
		engine := NewEngine(EngineOptions{
			ChunkSize:  j.cfg.ChunkSize,
			Transform:  tr,
			OnProgress: j.cfg.OnProgress,
			Metrics:    j.cfg.Metrics,
		})

		rep, err := engine.Run(ctx, phase, src, sink)
		report.Phases = append(report.Phases, rep)
		if err != nil {
			report.Duration = time.Since(start)
			logger.Error("job failed", "phase", phase, "error", err)
			return report, err
		}
	}

	report.Duration = time.Since(start)
	logger.Info("job completed", "duration", report.Duration)
	return report, nil
}

func (j *Job) endpoints(phase Phase) (Source, Sink, Transform) {
	if phase == PhaseImport {
		src := NewFileSource(j.cfg.SourcePath, DecoderOptions{
			Delimiter: j.cfg.Delimiter,
			Columns:   j.cfg.Columns,
			Strict:    j.cfg.Strict,
		})
		return src, NewStoreSink(j.cfg.Store), j.cfg.ImportTransform
	}
	sink := NewFileSink(j.cfg.DestPath, EncoderOptions{Delimiter: j.cfg.Delimiter}, j.cfg.ExportHeader)
	return j.cfg.Store.StreamAll(), sink, j.cfg.ExportTransform
}
