package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncoder_Encode(t *testing.T) {
	tests := []struct {
		name  string
		delim rune
		in    Customer
		want  string
	}{
		{
			name: "plain record",
			in:   Customer{ID: 1, FirstName: "A", LastName: "B", Email: "a@x.com", Gender: "M", ContactNo: "555", Country: "US", DOB: "1990-01-01"},
			want: "1,A,B,a@x.com,M,555,US,1990-01-01\n",
		},
		{
			name: "empty fields keep positions",
			in:   Customer{ID: 2},
			want: "2,,,,,,,\n",
		},
		{
			name: "values are not quoted",
			in:   Customer{ID: 3, FirstName: "Smith, Jr.", LastName: `say "hi"`},
			want: "3,Smith, Jr.,say \"hi\",,,,,\n",
		},
		{
			name: "leading space kept verbatim",
			in:   Customer{ID: 5, FirstName: " A", LastName: "B"},
			want: "5, A,B,,,,,\n",
		},
		{
			name:  "custom delimiter",
			delim: '|',
			in:    Customer{ID: 4, FirstName: "A,B"},
			want:  "4|A,B||||||\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := NewEncoder(&buf, EncoderOptions{Delimiter: tt.delim})
			if err := enc.Encode(tt.in); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if err := enc.Flush(); err != nil {
				t.Fatalf("Flush() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncoder_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, EncoderOptions{})
	if err := enc.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := buf.String(); got != csvHeader {
		t.Errorf("got %q, want %q", got, csvHeader)
	}
}

func TestEncoder_RoundTrip(t *testing.T) {
	recs := append(customers(3),
		Customer{ID: -4, FirstName: " lead", LastName: `quote"d`, Email: "trail ", DOB: "\\."},
	)

	var buf bytes.Buffer
	enc := NewEncoder(&buf, EncoderOptions{})
	if err := enc.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	for _, c := range recs {
		if err := enc.Encode(c); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.Flush(); err != nil {
		t.Fatal(err)
	}

	got, err := decodeAll(t, buf.String(), DecoderOptions{})
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(got) != len(recs) {
		t.Fatalf("got %d records, want %d", len(got), len(recs))
	}
	for i := range recs {
		if got[i] != recs[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], recs[i])
		}
	}
}

func TestEncoder_DecodedLineReencodesIdentically(t *testing.T) {
	line := "1, A,B,a@x.com,M,555,US,1990-01-01\n"
	got, err := decodeAll(t, csvHeader+line, DecoderOptions{})
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf, EncoderOptions{})
	if err := enc.Encode(got[0]); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := enc.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if buf.String() != line {
		t.Errorf("got %q, want %q", buf.String(), line)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestEncoder_FlushReportsWriteError(t *testing.T) {
	enc := NewEncoder(failingWriter{}, EncoderOptions{})
	_ = enc.Encode(Customer{ID: 1})
	err := enc.Flush()
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Flush() error = %v, want disk full", err)
	}
}
