// Package domain defines the core entities of kimchi.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: one decoded file from a repository snapshot
//   - Chunk: a retrievable span of a document with fixed-schema metadata
//   - IndexRecord: the persisted (vector, text, metadata) unit
//   - Strategy: the closed set of chunking strategies and the extension table
//   - Config: the explicit configuration object handed to constructors
//   - RunSummary: the end-of-run report of processed, skipped and failed work
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
