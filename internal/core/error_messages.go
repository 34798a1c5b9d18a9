package core

// # Error Codes Reference
//
// Every aborted run is reported with a stable code operators can search the
// logs for. Typed causes are resolved with errors.As, so codes survive any
// amount of wrapping. Message patterns are only matched under a store error
// or an untyped error; row and transform errors carry record text, which
// must not be read as a database condition.
//
// # Connection Errors (DB001-DB099)
//
//	DB001 - Connection refused: Unable to connect to database
//	DB002 - Connection reset: Database connection was interrupted
//	DB003 - Deadlock: Database was busy with conflicting operations
//	DB004 - Timeout: Database operation timed out
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Malformed row: A line could not be parsed
//	ROW002 - Ragged row: A line has the wrong number of fields
//	ROW003 - Invalid id: The id column is not an integer
//	ROW004 - Missing id: The id column is empty
//
// # Transform Errors (TRN001-TRN099)
//
//	TRN001 - Record rejected by the transform stage
//	TRN002 - Duplicate id within one import
//
// # Store Errors (STO001-STO099)
//
//	STO001 - Write failed
//	STO002 - Commit failed
//	STO003 - Transaction could not be started
//	STO004 - Read failed
//
// # Resource Errors (RES001-RES099)
//
//	RES001 - File could not be opened
//	RES002 - File could not be written or closed
//	RES003 - File could not be read
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run cancelled
//	RUN002 - Run deadline exceeded
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: check the logged technical error

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides operator-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched case-insensitively against the full error text.
// The first match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Check DATABASE_URL and that the database is running",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Re-run the job; committed chunks are kept and re-import is idempotent",
			Code:    "DB002",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Re-run the job when no other writer holds the table",
			Code:    "DB003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Database operation timed out",
			Action:  "Try a smaller CHUNK_SIZE or check database load",
			Code:    "DB004",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logged error for details",
	Code:    "ERR000",
}

// MapError converts a run error to an operator-facing message.
// It returns the zero UserMessage for a nil error.
//
// Example:
//
//	_, err := job.Run(ctx)
//	msg := MapError(err)
//	// msg.Code == "ROW003" for a non-integer id
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return UserMessage{Message: "Run was cancelled", Action: "Re-run the job when ready", Code: "RUN001"}
	case errors.Is(err, context.DeadlineExceeded):
		return UserMessage{Message: "Run deadline exceeded", Action: "Re-run the job with more time", Code: "RUN002"}
	}

	var (
		rpe *RowParseError
		te  *TransformError
		se  *StoreError
		re  *ResourceError
	)

	switch {
	case errors.As(err, &rpe):
		return mapRowError(rpe)
	case errors.As(err, &te):
		return mapTransformError(te)
	case errors.As(err, &se):
		if msg, ok := matchPattern(se); ok {
			return msg
		}
		return mapStoreError(se)
	case errors.As(err, &re):
		return mapResourceError(re)
	}

	if msg, ok := matchPattern(err); ok {
		return msg
	}
	return defaultMessage
}

func matchPattern(err error) (UserMessage, bool) {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

func mapTransformError(te *TransformError) UserMessage {
	if errors.Is(te, ErrDuplicateID) {
		return UserMessage{
			Message: fmt.Sprintf("Record id %d appears more than once", te.Key),
			Action:  "Remove the duplicate rows or set DUPLICATE_POLICY=last-wins",
			Code:    "TRN002",
		}
	}
	return UserMessage{
		Message: fmt.Sprintf("Record id %d was rejected", te.Key),
		Action:  "Fix the record and re-run the import",
		Code:    "TRN001",
	}
}

func mapStoreError(se *StoreError) UserMessage {
	switch se.Op {
	case "commit":
		return UserMessage{Message: "Chunk commit failed", Action: "Re-run the job; the failed chunk was rolled back", Code: "STO002"}
	case "begin":
		return UserMessage{Message: "Could not start a database transaction", Action: "Check database availability", Code: "STO003"}
	case "read":
		return UserMessage{Message: "Reading the table failed", Action: "Check the table exists and is readable", Code: "STO004"}
	}
	return UserMessage{Message: "Writing a record failed", Action: "Check the record against the table constraints", Code: "STO001"}
}

func mapResourceError(re *ResourceError) UserMessage {
	switch re.Op {
	case "open":
		return UserMessage{Message: fmt.Sprintf("Could not open %s", re.Path), Action: "Check the path exists and is accessible", Code: "RES001"}
	case "read":
		return UserMessage{Message: fmt.Sprintf("Could not read %s", re.Path), Action: "Check the file is readable", Code: "RES003"}
	}
	return UserMessage{Message: fmt.Sprintf("Could not write %s", re.Path), Action: "Check free disk space and permissions", Code: "RES002"}
}

func mapRowError(e *RowParseError) UserMessage {
	switch {
	case errors.Is(e, ErrRaggedRow):
		return UserMessage{
			Message: fmt.Sprintf("Line %d has the wrong number of fields", e.Line),
			Action:  "Fix the line or set ROW_POLICY=lenient",
			Code:    "ROW002",
		}
	case e.Field != "" && e.Value != "":
		return UserMessage{
			Message: fmt.Sprintf("Line %d: %s %q is not an integer", e.Line, e.Field, e.Value),
			Action:  "Use whole numbers in the id column",
			Code:    "ROW003",
		}
	case e.Field != "":
		return UserMessage{
			Message: fmt.Sprintf("Line %d: %s is empty", e.Line, e.Field),
			Action:  "Ensure every row has an id",
			Code:    "ROW004",
		}
	}
	return UserMessage{
		Message: fmt.Sprintf("Line %d could not be parsed", e.Line),
		Action:  "Check the line format",
		Code:    "ROW001",
	}
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
