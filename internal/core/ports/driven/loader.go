package driven

import (
	"context"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// DocumentLoader walks a snapshot root and yields decoded documents.
//
// Both channels are closed when the walk ends. Per-file data errors are sent
// on the error channel as *domain.SkipError and the walk continues; any other
// error ends the walk. Calling Load again re-reads from disk.
type DocumentLoader interface {
	Load(ctx context.Context, root string) (<-chan domain.Document, <-chan error)

	// LoadFile loads one file relative to root, applying the same rules.
	LoadFile(ctx context.Context, root, relPath string) (domain.Document, error)
}

// Watcher emits file changes under a root until ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context, root string) (<-chan domain.FileChange, error)
	Close() error
}

// Chunker splits one document into chunks with contiguous sequence indexes
// starting at zero. A document with no content yields zero chunks and a
// *domain.SkipError with reason SkipEmpty.
type Chunker interface {
	Chunk(doc domain.Document) ([]domain.Chunk, error)
}

// SourceMaterializer produces a local read-only snapshot of a repository.
type SourceMaterializer interface {
	// Materialize returns the snapshot root.
	Materialize(ctx context.Context) (string, error)

	// Describe names the source for banners and logs ("owner/repo@branch").
	Describe() string
}

// ProgressReporter displays ingestion progress. Implementations must accept
// calls after Finish and must be safe to use as a nil interface.
type ProgressReporter interface {
	Start(total int)
	Add(n int)
	Describe(desc string)
	Finish()
}
