package driven

import (
	"context"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// VectorIndex stores index records and answers similarity queries.
//
// At most one ingestion run writes to an index at a time. Reads (Search,
// Get, Count, Schema) are safe to run concurrently with each other.
type VectorIndex interface {
	// EnsureSchema creates the index if it does not exist. If it exists with
	// a different dimension or model, it returns ErrDimensionMismatch or
	// ErrModelMismatch. Calling it again with the same schema is a no-op.
	EnsureSchema(ctx context.Context, schema domain.IndexSchema) error

	// Schema returns the schema, or domain.ErrNotFound if the index has not
	// been created.
	Schema(ctx context.Context) (*domain.IndexSchema, error)

	// Upsert writes records, replacing any with the same ID. A replaced record
	// keeps its insertion sequence. Records that fail individually are
	// returned; the others stay written. A non-nil error means none of the
	// call's records can be assumed written.
	Upsert(ctx context.Context, records []domain.IndexRecord) ([]domain.RecordFailure, error)

	// Search returns up to k records ordered by descending cosine similarity,
	// ties broken by ascending insertion sequence.
	Search(ctx context.Context, query []float32, k int) ([]domain.ScoredRecord, error)

	// Get returns the records with the given IDs, skipping unknown IDs.
	Get(ctx context.Context, ids []string) ([]domain.IndexRecord, error)

	// DeleteBySource removes every record of a source path and returns their IDs.
	DeleteBySource(ctx context.Context, sourcePath string) ([]string, error)

	// Delete removes the records with the given IDs, skipping unknown IDs,
	// and returns how many were removed.
	Delete(ctx context.Context, ids []string) (int, error)

	// IDsBySource maps every source path in the index to its record IDs in
	// insertion order.
	IDsBySource(ctx context.Context) (map[string][]string, error)

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)

	// Drop removes all records and the schema.
	Drop(ctx context.Context) error

	// Close releases resources.
	Close() error
}
