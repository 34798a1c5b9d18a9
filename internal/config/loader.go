package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	// Database validation
	if c.Database.URL == "" {
		add("DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		add("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)
	}
	if c.Database.MaxConns <= 0 {
		add("DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		add("DB_MIN_CONNS must be non-negative")
	}
	if !tableNameRegex.MatchString(c.Database.Table) {
		add("DB_TABLE (%q) must be a plain identifier", c.Database.Table)
	}

	// Batch validation
	if c.Batch.ChunkSize <= 0 {
		add("CHUNK_SIZE must be positive")
	}
	if c.Batch.ExportPageSize <= 0 {
		add("EXPORT_PAGE_SIZE must be positive")
	}
	if !validDelimiter(c.Batch.Delimiter) {
		add("DELIMITER (%q) must be a single character other than a quote or line break", c.Batch.Delimiter)
	}

	phases := []string{}
	for _, p := range c.Batch.Phases {
		p = strings.ToLower(p)
		if p != PhaseImport && p != PhaseExport {
			add("PHASES entry %q must be one of: import, export", p)
			continue
		}
		if slices.Contains(phases, p) {
			add("PHASES lists %q more than once", p)
			continue
		}
		phases = append(phases, p)
	}
	if len(c.Batch.Phases) == 0 {
		add("PHASES must name at least one phase")
	}
	if len(phases) == 2 && phases[0] != PhaseImport {
		add("PHASES must run import before export")
	}
	if slices.Contains(phases, PhaseImport) && c.Batch.SourcePath == "" {
		add("SOURCE_PATH is required when the import phase runs")
	}
	if slices.Contains(phases, PhaseExport) && c.Batch.DestPath == "" {
		add("DEST_PATH is required when the export phase runs")
	}

	for _, t := range c.Batch.ImportTransforms {
		switch strings.ToLower(t) {
		case TransformTrim, TransformRequireEmail:
		default:
			add("IMPORT_TRANSFORMS entry %q must be one of: trim, require-email", t)
		}
	}

	validRowPolicies := map[string]bool{RowPolicyLenient: true, RowPolicyStrict: true}
	if !validRowPolicies[strings.ToLower(c.Batch.RowPolicy)] {
		add("ROW_POLICY (%q) must be one of: lenient, strict", c.Batch.RowPolicy)
	}

	validDupPolicies := map[string]bool{DuplicateLastWins: true, DuplicateError: true}
	if !validDupPolicies[strings.ToLower(c.Batch.DuplicatePolicy)] {
		add("DUPLICATE_POLICY (%q) must be one of: last-wins, error", c.Batch.DuplicatePolicy)
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		add("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		add("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if errs != nil {
		errs.ErrorFormat = listFormat
	}
	return errs.ErrorOrNil()
}

// tableNameRegex restricts DB_TABLE to an unquoted identifier, optionally schema-qualified.
var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func validDelimiter(d string) bool {
	if d == `\t` {
		return true
	}
	if utf8.RuneCountInString(d) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(d)
	return r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
}

func listFormat(errs []error) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = err.Error()
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(lines, "\n  - "))
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d, Table: %q}, ",
		c.Database.MaxConns, c.Database.MinConns, c.Database.Table))
	b.WriteString(fmt.Sprintf("Batch: {ChunkSize: %d, Delimiter: %q, SourcePath: %q, DestPath: %q, Phases: %v}, ",
		c.Batch.ChunkSize, c.Batch.Delimiter, c.Batch.SourcePath, c.Batch.DestPath, c.Batch.Phases))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
