package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

var errInjected = errors.New("injected failure")

// customers builds n records with ids 1..n.
func customers(n int) []Customer {
	out := make([]Customer, n)
	for i := range out {
		id := int64(i + 1)
		out[i] = Customer{
			ID:        id,
			FirstName: fmt.Sprintf("first%d", id),
			LastName:  fmt.Sprintf("last%d", id),
			Email:     fmt.Sprintf("c%d@example.com", id),
			Gender:    "F",
			ContactNo: fmt.Sprintf("555-%04d", id),
			Country:   "US",
			DOB:       "1990-01-01",
		}
	}
	return out
}

// sliceSource yields a fixed slice. failAt > 0 makes the failAt-th Next
// call return failErr.
type sliceSource struct {
	recs     []Customer
	pos      int
	calls    int
	failAt   int
	failErr  error
	openErr  error
	closeErr error

	opened bool
	closes int
}

func (s *sliceSource) Open(ctx context.Context) error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = true
	return nil
}

func (s *sliceSource) Next(ctx context.Context) (Customer, error) {
	s.calls++
	if s.failAt > 0 && s.calls == s.failAt {
		return Customer{}, s.failErr
	}
	if s.pos >= len(s.recs) {
		return Customer{}, io.EOF
	}
	c := s.recs[s.pos]
	s.pos++
	return c, nil
}

func (s *sliceSource) Close() error {
	s.closes++
	return s.closeErr
}

// recordingSink keeps committed chunks in order and drops rolled-back ones.
type recordingSink struct {
	chunks    [][]Customer
	rollbacks int
	open      int
	maxOpen   int
	closes    int
	openErr   error
	closeErr  error
	writeErr  func(chunk, idx int, c Customer) error
	commitErr func(chunk int) error
	begun     int
}

func (s *recordingSink) Open(ctx context.Context) error { return s.openErr }

func (s *recordingSink) Begin(ctx context.Context) (ChunkTx, error) {
	s.begun++
	s.open++
	if s.open > s.maxOpen {
		s.maxOpen = s.open
	}
	return &recordingTx{sink: s, chunk: s.begun}, nil
}

func (s *recordingSink) Close() error {
	s.closes++
	return s.closeErr
}

// written flattens the committed chunks.
func (s *recordingSink) written() []Customer {
	var out []Customer
	for _, ch := range s.chunks {
		out = append(out, ch...)
	}
	return out
}

func (s *recordingSink) chunkSizes() []int {
	sizes := make([]int, len(s.chunks))
	for i, ch := range s.chunks {
		sizes[i] = len(ch)
	}
	return sizes
}

type recordingTx struct {
	sink    *recordingSink
	chunk   int
	pending []Customer
	done    bool
}

func (t *recordingTx) Write(ctx context.Context, c Customer) error {
	if t.sink.writeErr != nil {
		if err := t.sink.writeErr(t.chunk, len(t.pending), c); err != nil {
			return err
		}
	}
	t.pending = append(t.pending, c)
	return nil
}

func (t *recordingTx) Commit(ctx context.Context) error {
	if t.sink.commitErr != nil {
		if err := t.sink.commitErr(t.chunk); err != nil {
			return err
		}
	}
	t.done = true
	t.sink.open--
	t.sink.chunks = append(t.sink.chunks, t.pending)
	return nil
}

func (t *recordingTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.sink.open--
	t.sink.rollbacks++
	return nil
}

// memStore is an in-memory Store with upsert semantics and failure hooks.
type memStore struct {
	mu        sync.Mutex
	rows      map[int64]Customer
	commits   int
	rollbacks int

	upsertErr func(c Customer) error
	commitErr func(n int) error // n is the 1-based commit attempt
	attempts  int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]Customer)}
}

func (s *memStore) Begin(ctx context.Context) (StoreTx, error) {
	return &memTx{store: s}, nil
}

func (s *memStore) StreamAll() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]Customer, 0, len(s.rows))
	for _, c := range s.rows {
		recs = append(recs, c)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return &sliceSource{recs: recs}
}

func (s *memStore) snapshot() map[int64]Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]Customer, len(s.rows))
	for k, v := range s.rows {
		out[k] = v
	}
	return out
}

type memTx struct {
	store   *memStore
	pending []Customer
}

func (t *memTx) Upsert(ctx context.Context, c Customer) error {
	if t.store.upsertErr != nil {
		if err := t.store.upsertErr(c); err != nil {
			return err
		}
	}
	t.pending = append(t.pending, c)
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.commitErr != nil {
		if err := s.commitErr(s.attempts); err != nil {
			return err
		}
	}
	for _, c := range t.pending {
		s.rows[c.ID] = c
	}
	s.commits++
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.store.mu.Lock()
	t.store.rollbacks++
	t.store.mu.Unlock()
	t.pending = nil
	return nil
}
