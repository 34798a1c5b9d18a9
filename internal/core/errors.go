package core

import (
	"errors"
	"fmt"
)

// ErrRaggedRow marks a row whose token count differs from the column count
// when the decoder runs in strict mode.
var ErrRaggedRow = errors.New("ragged row")

// ErrDuplicateID marks a record whose id was already seen in the same run.
var ErrDuplicateID = errors.New("duplicate id")

// RowParseError reports a line the decoder could not turn into a record.
type RowParseError struct {
	Line  int    // 1-based line number in the source file
	Field string // Offending column name, empty for row-level problems
	Value string
	Err   error
}

func (e *RowParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row parse error at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("row parse error at line %d: field %q value %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *RowParseError) Unwrap() error { return e.Err }

// TransformError reports a record rejected by the transform stage.
type TransformError struct {
	Key int64 // Record id
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform rejected record id=%d: %v", e.Key, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// StoreError reports a sink write, commit or read failure.
type StoreError struct {
	Op     string // "begin", "write", "commit", "read"
	Offset int    // Zero-based source offset of the chunk's first record
	Key    int64  // Record id for write failures, zero otherwise
	Err    error
}

func (e *StoreError) Error() string {
	if e.Op == "write" {
		return fmt.Sprintf("store %s failed for record id=%d (chunk offset %d): %v", e.Op, e.Key, e.Offset, e.Err)
	}
	return fmt.Sprintf("store %s failed (chunk offset %d): %v", e.Op, e.Offset, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ResourceError reports a source or destination that could not be opened,
// read, flushed or released.
type ResourceError struct {
	Op   string // "open", "close", "flush"
	Path string // File path or resource description
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// PhaseError is the error an aborted engine run returns. It names the phase
// and the chunk that failed; the cause is one of the kinds above.
type PhaseError struct {
	Phase  Phase
	Chunk  int // 1-based chunk index, zero when the run failed before reading
	Offset int // Zero-based offset of the chunk's first record
	Err    error
}

func (e *PhaseError) Error() string {
	if e.Chunk == 0 {
		return fmt.Sprintf("phase %s aborted: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("phase %s aborted at chunk %d (offset %d): %v", e.Phase, e.Chunk, e.Offset, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Line returns the source line of the failure when the cause is a parse error.
func (e *PhaseError) Line() int {
	var rpe *RowParseError
	if errors.As(e.Err, &rpe) {
		return rpe.Line
	}
	return 0
}
