package core

import (
	"bufio"
	"io"
	"strings"
)

// EncoderOptions configures an Encoder.
type EncoderOptions struct {
	Delimiter rune // Field separator (default ',')
}

// Encoder writes customers as delimited lines in CustomerFields order.
// Values are joined as-is, with no quoting or escaping, so a value that
// contains the delimiter or a line break does not read back as one field.
type Encoder struct {
	w     *bufio.Writer
	delim string
}

// NewEncoder creates an encoder writing to w. Output is buffered until Flush.
func NewEncoder(w io.Writer, opts EncoderOptions) *Encoder {
	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}
	return &Encoder{w: bufio.NewWriter(w), delim: string(delim)}
}

// WriteHeader writes the column names line.
func (e *Encoder) WriteHeader() error {
	return e.writeLine(CustomerColumns())
}

// Encode writes one record line.
func (e *Encoder) Encode(c Customer) error {
	return e.writeLine(c.Values())
}

func (e *Encoder) writeLine(values []string) error {
	if _, err := e.w.WriteString(strings.Join(values, e.delim)); err != nil {
		return err
	}
	return e.w.WriteByte('\n')
}

// Flush writes buffered lines to the destination and reports any write error.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}
