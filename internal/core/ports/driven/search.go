package driven

import (
	"context"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// KeywordIndex provides BM25 keyword search over record text.
// It is keyed by record ID and kept in step with the VectorIndex.
type KeywordIndex interface {
	// Index adds or replaces records.
	Index(ctx context.Context, records []domain.IndexRecord) error

	// Delete removes records by ID.
	Delete(ctx context.Context, ids []string) error

	// Search performs a keyword search and returns matching record IDs with scores.
	Search(ctx context.Context, query string, limit int) ([]domain.KeywordHit, error)

	// Close releases resources.
	Close() error
}
