package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	Delimiter rune     // Field separator (default ',')
	Columns   []string // Declared column names in token order (default CustomerColumns())
	Strict    bool     // Fail rows whose token count differs from len(Columns)
}

// Decoder turns a headered delimited stream into a forward-only sequence
// of customers. The first line is skipped unconditionally; its text plays no
// part in mapping, the declared Columns do.
//
// Every physical line is one record. Lines are split on the delimiter with
// no quoting: a quote character is ordinary text.
type Decoder struct {
	br     *bufio.Reader
	delim  string
	fields []FieldSpec
	strict bool
	line   int // Physical lines consumed, header included
	eof    bool
}

// NewDecoder creates a decoder over r. It fails if a declared column is not
// a known customer field.
func NewDecoder(r io.Reader, opts DecoderOptions) (*Decoder, error) {
	cols := opts.Columns
	if len(cols) == 0 {
		cols = CustomerColumns()
	}

	fields := make([]FieldSpec, len(cols))
	for i, name := range cols {
		spec, ok := FieldByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		fields[i] = spec
	}
	for _, spec := range CustomerFields {
		if spec.Required && !slices.Contains(cols, spec.Name) {
			return nil, fmt.Errorf("required column %q is not declared", spec.Name)
		}
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}

	return &Decoder{
		br:     bufio.NewReader(r),
		delim:  string(delim),
		fields: fields,
		strict: opts.Strict,
	}, nil
}

// Next returns the next record, or io.EOF when the stream is exhausted.
// Any other error is a *RowParseError or the underlying read error.
func (d *Decoder) Next() (Customer, error) {
	if d.line == 0 {
		if _, err := d.readLine(); err != nil {
			return Customer{}, err
		}
	}

	for {
		text, err := d.readLine()
		if err != nil {
			return Customer{}, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		return d.decodeRow(strings.Split(text, d.delim), d.line)
	}
}

// readLine returns the next physical line without its terminator. A final
// line without a newline is still returned; io.EOF follows it.
func (d *Decoder) readLine() (string, error) {
	if d.eof {
		return "", io.EOF
	}
	text, err := d.br.ReadString('\n')
	if err == io.EOF {
		d.eof = true
		if text == "" {
			return "", io.EOF
		}
	} else if err != nil {
		return "", err
	}
	d.line++
	text = strings.TrimSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\r")
	return text, nil
}

func (d *Decoder) decodeRow(row []string, line int) (Customer, error) {
	if d.strict && len(row) != len(d.fields) {
		return Customer{}, &RowParseError{
			Line: line,
			Err:  fmt.Errorf("%w: got %d fields, want %d", ErrRaggedRow, len(row), len(d.fields)),
		}
	}

	var c Customer
	for i, spec := range d.fields {
		raw := ""
		if i < len(row) {
			raw = strings.ToValidUTF8(row[i], "\uFFFD")
		}
		if spec.Type == FieldInteger {
			raw = strings.TrimSpace(raw)
		}

		if raw == "" {
			if spec.Required {
				return Customer{}, &RowParseError{Line: line, Field: spec.Name, Err: errors.New("required field is empty")}
			}
			continue
		}

		if err := spec.Set(&c, raw); err != nil {
			return Customer{}, &RowParseError{Line: line, Field: spec.Name, Value: raw, Err: fmt.Errorf("invalid integer: %w", err)}
		}
	}

	return c, nil
}
