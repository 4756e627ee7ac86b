package driving

import (
	"context"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

// IngestService turns a repository snapshot into index records.
type IngestService interface {
	// Run performs a full ingestion: load, chunk, embed, upsert.
	// Per-item failures are reported in the summary. A non-nil error means
	// the run was aborted; the partial summary is still returned.
	Run(ctx context.Context) (*domain.RunSummary, error)

	// Reindex replaces the records of the given relative paths.
	Reindex(ctx context.Context, paths []string) (*domain.RunSummary, error)

	// Remove deletes the records of a relative path.
	Remove(ctx context.Context, path string) (int, error)

	// Root returns the snapshot root, materializing it if needed.
	Root(ctx context.Context) (string, error)

	// Watch re-indexes changed files until ctx is cancelled.
	Watch(ctx context.Context, w driven.Watcher, report func(*domain.RunSummary)) error
}
