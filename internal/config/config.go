// Package config provides centralized configuration management for the batch job.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Batch    BatchConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Table is the customer table name (default: customers)
	Table string `env:"DB_TABLE" default:"customers"`

	// CreateTable creates the customer table when it does not exist (default: true)
	CreateTable bool `env:"DB_CREATE_TABLE" default:"true"`
}

// BatchConfig holds the transfer job settings.
type BatchConfig struct {
	// ChunkSize is the number of records committed per transaction (default: 10)
	ChunkSize int `env:"CHUNK_SIZE" default:"10"`

	// Delimiter is the single field separator character (default: ",")
	Delimiter string `env:"DELIMITER" default:","`

	// SourcePath is the CSV file read by the import phase
	SourcePath string `env:"SOURCE_PATH" default:"data/customers.csv"`

	// DestPath is the CSV file written by the export phase
	DestPath string `env:"DEST_PATH" default:"output/customers.csv"`

	// ExportHeader writes a header line before exported records (default: false)
	ExportHeader bool `env:"EXPORT_HEADER" default:"false"`

	// ExportPageSize is the number of rows fetched per export query (default: 500)
	ExportPageSize int `env:"EXPORT_PAGE_SIZE" default:"500"`

	// RowPolicy is how ragged rows are handled: lenient or strict (default: lenient)
	RowPolicy string `env:"ROW_POLICY" default:"lenient"`

	// DuplicatePolicy is how repeated ids within one file are handled: last-wins or error
	DuplicatePolicy string `env:"DUPLICATE_POLICY" default:"last-wins"`

	// ImportTransforms lists built-in transforms applied to imported records,
	// in order: trim, require-email (default: none)
	ImportTransforms []string `env:"IMPORT_TRANSFORMS"`

	// Phases lists the phases to run, in order (default: import,export)
	Phases []string `env:"PHASES" default:"import,export"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds run metrics and progress reporting settings.
type MetricsConfig struct {
	// File receives Prometheus text metrics when the job ends (empty disables)
	File string `env:"METRICS_FILE"`

	// Progress renders a progress bar on stderr while phases run (default: true)
	Progress bool `env:"PROGRESS" default:"true"`
}

// Row policies.
const (
	RowPolicyLenient = "lenient"
	RowPolicyStrict  = "strict"
)

// Duplicate id policies.
const (
	DuplicateLastWins = "last-wins"
	DuplicateError    = "error"
)

// Transform names accepted in IMPORT_TRANSFORMS.
const (
	TransformTrim         = "trim"
	TransformRequireEmail = "require-email"
)

// Phase names accepted in PHASES.
const (
	PhaseImport = "import"
	PhaseExport = "export"
)

// DelimiterRune returns the configured delimiter as a rune.
// The two-character escape `\t` selects a tab.
func (c *BatchConfig) DelimiterRune() rune {
	if c.Delimiter == `\t` {
		return '\t'
	}
	for _, r := range c.Delimiter {
		return r
	}
	return ','
}

// RunPhases returns the configured phases lowercased, in run order.
func (c *BatchConfig) RunPhases() []string {
	out := make([]string, 0, len(c.Phases))
	for _, p := range c.Phases {
		out = append(out, strings.ToLower(p))
	}
	return out
}

// Transforms returns the configured import transform names lowercased, in order.
func (c *BatchConfig) Transforms() []string {
	out := make([]string, 0, len(c.ImportTransforms))
	for _, t := range c.ImportTransforms {
		out = append(out, strings.ToLower(t))
	}
	return out
}

// Strict reports whether ragged rows fail the import.
func (c *BatchConfig) Strict() bool {
	return strings.EqualFold(c.RowPolicy, RowPolicyStrict)
}

// RejectDuplicates reports whether a repeated id within one file fails the import.
func (c *BatchConfig) RejectDuplicates() bool {
	return strings.EqualFold(c.DuplicatePolicy, DuplicateError)
}
