package driving

import (
	"context"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// RetrievalService returns the records most relevant to a query.
type RetrievalService interface {
	// Retrieve returns at most k records, best first.
	Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredRecord, error)

	// Stats describes the index.
	Stats(ctx context.Context) (*domain.IndexStats, error)
}
