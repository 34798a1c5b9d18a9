package core

import "context"

// Source produces a lazy, forward-only sequence of records.
//
// Open is called once before the first Next and Close exactly once after
// the run ends, whatever the outcome. Next returns io.EOF when exhausted.
type Source interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (Customer, error)
	Close() error
}

// Sink accepts records for persistence or emission, one chunk at a time.
//
// Begin opens the transactional scope for one chunk. The engine never holds
// more than one ChunkTx open per sink.
type Sink interface {
	Open(ctx context.Context) error
	Begin(ctx context.Context) (ChunkTx, error)
	Close() error
}

// ChunkTx is the transactional scope of one chunk. Exactly one of Commit or
// Rollback ends it; Rollback after Commit is a no-op.
type ChunkTx interface {
	Write(ctx context.Context, c Customer) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store is the persistence contract the job needs from the database layer.
//
// Upsert is an idempotent insert-or-update keyed by id. StreamAll returns
// a Source yielding every record in ascending id order.
type Store interface {
	Begin(ctx context.Context) (StoreTx, error)
	StreamAll() Source
}

// StoreTx is one database transaction.
type StoreTx interface {
	Upsert(ctx context.Context, c Customer) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
