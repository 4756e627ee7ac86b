// Package sqlite provides a persistent implementation of driven.VectorIndex.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Each named index lives in its own
// database file, <data_dir>/<name>.db, holding:
//
//   - index_meta: the single schema row (name, dimensions, embedding model)
//   - records: one row per chunk with its vector, text and fixed metadata columns
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Search
//
// Vectors are stored as little-endian float32 blobs. Search is an exact scan:
// every vector is scored by cosine similarity in Go. This is adequate for a
// single repository and keeps results deterministic.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
