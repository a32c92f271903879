// Package store implements the embedded object persistence engine that backs
// the strata metadata repository.
//
// The engine stores an interlinked graph of domain records as individually
// addressable JSON blobs. Each record carries a type tag and an object
// identifier (OID); references between records are stored as lightweight
// markers and resolved lazily on read.
//
// # Components
//
//   - [Storage]: durable blob read/write keyed by OID. [FileStorage] shards
//     long keys into two-level two-character directories; [SQLiteStorage] is
//     an alternate single-table backend.
//   - [Cache]: in-process identity map from OID to live instance.
//   - [Index]: named, ordered secondary key -> object mapping with bounded
//     range queries.
//   - [ValueRegistry]: interning registry deduplicating immutable values by
//     their declared id.
//   - [TypeRegistry]: closed mapping from stable type tags to factories; any
//     tag outside it fails closed during deserialization.
//   - [Database]: the orchestrator owning all of the above plus the pending
//     write set and the persisted root mapping.
//
// # Critical Invariants
//
//   - Single instance per identity: within one Database lifetime at most one
//     live instance exists per OID. Cache, pre-cache and pending set are
//     mutually exclusive views into one identity space.
//   - OIDs never change once assigned. Deterministic OIDs are SHA-256 over
//     the NFC-normalized domain id; objects without a domain id get a random
//     identity.
//   - Cascading save: serializing a registered object assigns identities to
//     any unregistered objects it references and schedules them for the same
//     commit. [Database.Commit] iterates to a fixed point.
//   - Ghosts: a reference encountered during load yields a placeholder that
//     is a valid, comparable identity before its fields are loaded. This is
//     what breaks reference cycles.
//
// # Concurrency
//
// The engine is fully synchronous and single-threaded. A Database is NOT
// safe for concurrent use; callers must hold exclusive access for the
// duration of a read/modify/commit sequence. There is no transaction log:
// an interruption mid-commit leaves some objects stored and others pending
// (documented limitation, no automatic rollback).
package store
