package core

import (
	"context"
	"os"
	"path/filepath"
)

// FileSource reads customers from a headered delimited file.
type FileSource struct {
	path    string
	opts    DecoderOptions
	file    *os.File
	counter *CountingReader
	dec     *Decoder
}

// NewFileSource creates a source for path. Nothing is opened until Open.
func NewFileSource(path string, opts DecoderOptions) *FileSource {
	return &FileSource{path: path, opts: opts}
}

// Open opens the file and prepares the decoder.
func (s *FileSource) Open(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return &ResourceError{Op: "open", Path: s.path, Err: err}
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	r, counter := WrapForStreaming(f, size)
	dec, err := NewDecoder(r, s.opts)
	if err != nil {
		f.Close()
		return &ResourceError{Op: "open", Path: s.path, Err: err}
	}

	s.file, s.counter, s.dec = f, counter, dec
	return nil
}

// Next returns the next decoded record or io.EOF.
func (s *FileSource) Next(ctx context.Context) (Customer, error) {
	return s.dec.Next()
}

// BytesRead reports how far into the file the decoder has read.
func (s *FileSource) BytesRead() int64 {
	if s.counter == nil {
		return 0
	}
	return s.counter.BytesRead()
}

// BytesTotal reports the file size, or 0 before Open or when unknown.
func (s *FileSource) BytesTotal() int64 {
	if s.counter == nil {
		return 0
	}
	return s.counter.Total()
}

// Close releases the file. It is safe to call when Open failed.
func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// FileSink writes customers to a delimited file, creating or truncating it.
// Records of a chunk are held until Commit, so a rolled-back chunk leaves
// no bytes in the file.
type FileSink struct {
	path   string
	opts   EncoderOptions
	header bool
	file   *os.File
	enc    *Encoder
}

// NewFileSink creates a sink for path. With header set, the column names line
// is written on Open.
func NewFileSink(path string, opts EncoderOptions, header bool) *FileSink {
	return &FileSink{path: path, opts: opts, header: header}
}

// Open creates the parent directory and the destination file.
func (s *FileSink) Open(ctx context.Context) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &ResourceError{Op: "open", Path: s.path, Err: err}
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return &ResourceError{Op: "open", Path: s.path, Err: err}
	}
	s.file = f
	s.enc = NewEncoder(f, s.opts)

	if s.header {
		if err := s.enc.WriteHeader(); err != nil {
			return &ResourceError{Op: "flush", Path: s.path, Err: err}
		}
		if err := s.enc.Flush(); err != nil {
			return &ResourceError{Op: "flush", Path: s.path, Err: err}
		}
	}
	return nil
}

// Begin starts buffering one chunk.
func (s *FileSink) Begin(ctx context.Context) (ChunkTx, error) {
	return &fileChunk{sink: s}, nil
}

// Close syncs and closes the file. It is safe to call when Open failed.
func (s *FileSink) Close() error {
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type fileChunk struct {
	sink    *FileSink
	pending []Customer
}

func (c *fileChunk) Write(ctx context.Context, rec Customer) error {
	c.pending = append(c.pending, rec)
	return nil
}

// Commit encodes the chunk and flushes it to the file.
func (c *fileChunk) Commit(ctx context.Context) error {
	for _, rec := range c.pending {
		if err := c.sink.enc.Encode(rec); err != nil {
			return &ResourceError{Op: "flush", Path: c.sink.path, Err: err}
		}
	}
	c.pending = nil
	if err := c.sink.enc.Flush(); err != nil {
		return &ResourceError{Op: "flush", Path: c.sink.path, Err: err}
	}
	return nil
}

func (c *fileChunk) Rollback(ctx context.Context) error {
	c.pending = nil
	return nil
}

// StoreSink adapts a Store to the Sink contract: one database transaction
// per chunk, each record upserted by id. The store's lifetime belongs to the
// caller, so Open and Close do nothing.
type StoreSink struct {
	store Store
}

// NewStoreSink wraps store as a Sink.
func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Open(ctx context.Context) error { return nil }

func (s *StoreSink) Close() error { return nil }

// Begin opens a database transaction for one chunk.
func (s *StoreSink) Begin(ctx context.Context) (ChunkTx, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, &StoreError{Op: "begin", Err: err}
	}
	return &storeChunk{tx: tx}, nil
}

type storeChunk struct {
	tx   StoreTx
	done bool
}

func (c *storeChunk) Write(ctx context.Context, rec Customer) error {
	if err := c.tx.Upsert(ctx, rec); err != nil {
		return &StoreError{Op: "write", Key: rec.ID, Err: err}
	}
	return nil
}

func (c *storeChunk) Commit(ctx context.Context) error {
	c.done = true
	if err := c.tx.Commit(ctx); err != nil {
		return &StoreError{Op: "commit", Err: err}
	}
	return nil
}

// Rollback is a no-op once the chunk committed.
func (c *storeChunk) Rollback(ctx context.Context) error {
	if c.done {
		return nil
	}
	c.done = true
	return c.tx.Rollback(ctx)
}
