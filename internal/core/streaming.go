package core

// streaming.go provides the reader wrappers the decoder puts in front of a
// source file. Both run in constant memory:
//
//   - bomSkippingReader: drops a leading UTF-8 BOM written by Windows tools
//   - CountingReader: tracks bytes consumed for progress reporting

import (
	"bufio"
	"bytes"
	"io"
	"sync/atomic"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// bomSkippingReader discards the UTF-8 BOM on first read, if present.
type bomSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r so that a leading UTF-8 BOM is not returned.
func NewBOMSkippingReader(r io.Reader) io.Reader {
	return &bomSkippingReader{br: bufio.NewReader(r)}
}

func (r *bomSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		head, err := r.br.Peek(len(utf8BOM))
		if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
			return 0, err
		}
		if bytes.Equal(head, utf8BOM) {
			_, _ = r.br.Discard(len(utf8BOM))
		}
	}
	return r.br.Read(p)
}

// CountingReader wraps an io.Reader to track bytes read.
// BytesRead is safe to call from another goroutine.
type CountingReader struct {
	reader io.Reader
	n      atomic.Int64
	total  int64
}

// NewCountingReader creates a counting reader with optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{reader: r, total: total}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.n.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes consumed so far.
func (r *CountingReader) BytesRead() int64 {
	return r.n.Load()
}

// Total returns the size of the underlying resource, or 0 when unknown.
func (r *CountingReader) Total() int64 {
	return r.total
}

// WrapForStreaming wraps a reader with byte counting and BOM skipping.
// Counting sits underneath so BytesRead matches the file size at EOF.
func WrapForStreaming(r io.Reader, totalSize int64) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r, totalSize)
	return NewBOMSkippingReader(counter), counter
}
