package core

// engine.go implements the chunked transfer loop shared by both phases.
//
// Each chunk walks Reading -> Transforming -> Writing -> Committing. A chunk
// either commits whole or is rolled back whole; the first failure ends the
// run in Aborted and leaves earlier chunks committed. Exhausting the source
// ends the run in Done after any final partial chunk commits.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/JonMunkholm/batchcsv/internal/logging"
)

// DefaultChunkSize is the commit granularity when none is configured.
const DefaultChunkSize = 10

// RunMetrics receives engine events for instrumentation.
type RunMetrics interface {
	RecordsRead(phase Phase, n int)
	ChunkCommitted(phase Phase, records int, took time.Duration)
	ChunkRolledBack(phase Phase)
	PhaseFinished(phase Phase, state State, took time.Duration)
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	ChunkSize  int              // Records per commit (default DefaultChunkSize)
	Transform  Transform        // Applied to each record (default Identity)
	OnProgress ProgressCallback // Optional, called on every state change
	Metrics    RunMetrics       // Optional
}

// Engine moves records from a Source to a Sink in committed chunks.
// An Engine holds no per-run state and may be reused for sequential runs.
type Engine struct {
	chunkSize  int
	transform  Transform
	onProgress ProgressCallback
	metrics    RunMetrics
}

// NewEngine creates an engine from opts, applying defaults.
func NewEngine(opts EngineOptions) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Transform == nil {
		opts.Transform = Identity
	}
	return &Engine{
		chunkSize:  opts.ChunkSize,
		transform:  opts.Transform,
		onProgress: opts.OnProgress,
		metrics:    opts.Metrics,
	}
}

// ChunkSize returns the configured commit granularity.
func (e *Engine) ChunkSize() int { return e.chunkSize }

// run carries the mutable state of one Run call.
type run struct {
	e        *Engine
	phase    Phase
	progress Progress
	counter  interface{ BytesRead() int64 }
	sized    interface{ BytesTotal() int64 }
}

func (r *run) enter(s State) {
	r.progress.State = s
	if r.counter != nil {
		r.progress.BytesRead = r.counter.BytesRead()
	}
	if r.sized != nil {
		r.progress.BytesTotal = r.sized.BytesTotal()
	}
	if r.e.onProgress != nil {
		r.e.onProgress(r.progress)
	}
}

// Run transfers every record from src to sink. Both ends are opened before
// the first chunk. Close is called on every exit path, including a failed
// Open, so implementations must tolerate Close without a successful Open.
// The returned Report is always populated; err is a *PhaseError when the
// run aborted.
func (e *Engine) Run(ctx context.Context, phase Phase, src Source, sink Sink) (rep Report, err error) {
	start := time.Now()
	logger := logging.WithFields(ctx, "phase", phase, "chunk_size", e.chunkSize)

	r := &run{e: e, phase: phase, progress: Progress{Phase: phase, State: StateIdle}}
	if c, ok := src.(interface{ BytesRead() int64 }); ok {
		r.counter = c
	}
	if c, ok := src.(interface{ BytesTotal() int64 }); ok {
		r.sized = c
	}

	defer func() {
		rep.Phase = phase
		rep.Read = r.progress.Read
		rep.Written = r.progress.Written
		rep.Commits = r.progress.Commits
		rep.Duration = time.Since(start)
		rep.State = StateDone
		if err != nil {
			rep.State = StateAborted
		}
		rep.Err = err
		r.enter(rep.State)
		if e.metrics != nil {
			e.metrics.PhaseFinished(phase, rep.State, rep.Duration)
		}
		if err != nil {
			logger.Error("phase aborted",
				"chunk", r.progress.Chunk,
				"written", rep.Written,
				"commits", rep.Commits,
				"error", err,
			)
			return
		}
		logger.Info("phase completed",
			"read", rep.Read,
			"written", rep.Written,
			"commits", rep.Commits,
			"duration", rep.Duration,
		)
	}()

	logger.Info("phase started")

	defer func() { err = releaseInto(err, phase, r.progress, "source", src.Close()) }()
	if err := src.Open(ctx); err != nil {
		return rep, &PhaseError{Phase: phase, Err: asResourceError("open", "source", err)}
	}

	defer func() { err = releaseInto(err, phase, r.progress, "sink", sink.Close()) }()
	if err := sink.Open(ctx); err != nil {
		return rep, &PhaseError{Phase: phase, Err: asResourceError("open", "sink", err)}
	}

	return rep, e.loop(ctx, r, src, sink)
}

func (e *Engine) loop(ctx context.Context, r *run, src Source, sink Sink) error {
	logger := logging.WithFields(ctx, "phase", r.phase)
	buf := make([]Customer, 0, e.chunkSize)
	offset := 0

	for chunk := 1; ; chunk++ {
		abort := func(cause error) error {
			return &PhaseError{Phase: r.phase, Chunk: chunk, Offset: offset, Err: cause}
		}

		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		r.progress.Chunk = chunk
		r.enter(StateReading)

		buf = buf[:0]
		exhausted := false
		for len(buf) < e.chunkSize {
			c, err := src.Next(ctx)
			if err == io.EOF {
				exhausted = true
				break
			}
			if err != nil {
				return abort(classifySourceError(err, offset))
			}
			buf = append(buf, c)
			r.progress.Read++
		}
		if e.metrics != nil && len(buf) > 0 {
			e.metrics.RecordsRead(r.phase, len(buf))
		}
		if len(buf) == 0 {
			r.progress.Chunk = chunk - 1
			return nil
		}

		r.enter(StateTransforming)
		for i := range buf {
			out, err := e.transform.Apply(ctx, buf[i])
			if err != nil {
				return abort(asTransformError(buf[i].ID, err))
			}
			buf[i] = out
		}

		chunkStart := time.Now()
		r.enter(StateWriting)
		if err := e.writeChunk(ctx, r, sink, buf, offset); err != nil {
			if e.metrics != nil {
				e.metrics.ChunkRolledBack(r.phase)
			}
			return abort(err)
		}

		r.progress.Written += len(buf)
		r.progress.Commits++
		if e.metrics != nil {
			e.metrics.ChunkCommitted(r.phase, len(buf), time.Since(chunkStart))
		}
		logger.Debug("chunk committed", "chunk", chunk, "offset", offset, "records", len(buf))
		offset += len(buf)

		if exhausted {
			return nil
		}
	}
}

// writeChunk writes buf inside one sink transaction and commits it, or rolls
// the whole chunk back on the first failure.
func (e *Engine) writeChunk(ctx context.Context, r *run, sink Sink, buf []Customer, offset int) error {
	tx, err := sink.Begin(ctx)
	if err != nil {
		return asStoreError("begin", offset, 0, err)
	}

	// Rollback must reach the sink even when ctx is what failed.
	rollback := func(cause error) error {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			return multierror.Append(cause, fmt.Errorf("rollback: %w", rbErr))
		}
		return cause
	}

	for _, c := range buf {
		if err := tx.Write(ctx, c); err != nil {
			return rollback(asStoreError("write", offset, c.ID, err))
		}
	}

	r.enter(StateCommitting)
	if err := tx.Commit(ctx); err != nil {
		return rollback(asStoreError("commit", offset, 0, err))
	}
	return nil
}

// releaseInto folds a Close error into the run result. A close failure after
// an otherwise clean run aborts the phase.
func releaseInto(runErr error, phase Phase, p Progress, what string, closeErr error) error {
	if closeErr == nil {
		return runErr
	}
	closeErr = asResourceError("close", what, closeErr)

	var pe *PhaseError
	if errors.As(runErr, &pe) {
		pe.Err = multierror.Append(pe.Err, closeErr)
		return pe
	}
	if runErr != nil {
		return multierror.Append(runErr, closeErr)
	}
	return &PhaseError{Phase: phase, Chunk: p.Chunk, Offset: p.Written, Err: closeErr}
}

func classifySourceError(err error, offset int) error {
	var rpe *RowParseError
	var se *StoreError
	var re *ResourceError
	switch {
	case errors.As(err, &rpe):
		return err
	case errors.As(err, &se):
		if se.Offset == 0 {
			se.Offset = offset
		}
		return err
	case errors.As(err, &re):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &ResourceError{Op: "read", Path: "source", Err: err}
}

func asTransformError(key int64, err error) error {
	var te *TransformError
	if errors.As(err, &te) {
		return err
	}
	return &TransformError{Key: key, Err: err}
}

func asStoreError(op string, offset int, key int64, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		se.Offset = offset
		return err
	}
	var re *ResourceError
	if errors.As(err, &re) {
		return err
	}
	return &StoreError{Op: op, Offset: offset, Key: key, Err: err}
}

func asResourceError(op, what string, err error) error {
	var re *ResourceError
	if errors.As(err, &re) {
		return err
	}
	return &ResourceError{Op: op, Path: what, Err: err}
}
