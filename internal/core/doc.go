// Package core provides the business logic for the customer CSV <-> DB transfer.
//
// This package holds all domain logic independent of the database driver and
// the command line. It can be driven by the batchcsv command or by tests
// without modification.
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Record model: [Customer] and the single ordered column table
//     [CustomerFields] shared by decoding, encoding and the store.
//   - Ports: [Source], [Sink] and [ChunkTx] are what the engine moves records
//     between; [Store] is what the job needs from the database.
//   - Engine: [Engine.Run] moves records in chunks, one transaction per chunk.
//   - Job: [Job.Run] runs the import phase and then the export phase.
//
// # Chunked Transfer
//
// Both phases run in O(chunk_size) memory, regardless of file or table size.
// The flow for each chunk is:
//
//  1. Pull up to [EngineOptions.ChunkSize] records from the source
//  2. Apply the [Transform] to each record in order
//  3. Open a chunk transaction, write every record, commit
//  4. On any failure roll the chunk back and abort the phase
//
// Chunks committed before a failure stay committed. Import upserts by id, so
// re-running a failed import is safe.
//
// # Error Handling
//
// An aborted run returns a [*PhaseError] naming the phase, chunk and offset.
// Its cause is one of [*RowParseError], [*TransformError], [*StoreError] or
// [*ResourceError]. [MapError] turns any of them into an operator message
// with a stable code:
//
//   - ROW001-ROW004: Unparseable lines
//   - TRN001-TRN002: Records rejected by the transform stage
//   - STO001-STO004: Store failures
//   - RES001-RES003: Files that cannot be opened, read or written
package core
