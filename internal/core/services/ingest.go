package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/core/ports/driving"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService runs the load → chunk → embed → upsert pipeline.
//
// Documents stream from the loader and are chunked one at a time. Chunks are
// buffered and flushed every Index.BatchSize chunks: the batch is embedded by
// the EmbedPool, written to the vector index, then to the keyword index when
// one is configured. Cancellation is observed between batches; a batch that
// has started is completed. Records a file no longer yields are deleted, and
// after a complete walk so are the records of files that are gone.
type IngestService struct {
	cfg      domain.Config
	loader   driven.DocumentLoader
	chunker  driven.Chunker
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	pool     *EmbedPool
	retrier  Retrier

	// Optional collaborators.
	keyword  driven.KeywordIndex
	source   driven.SourceMaterializer
	progress driven.ProgressReporter

	mu   sync.Mutex
	root string
}

// NewIngestService creates an ingestion service. The config is validated by Run.
func NewIngestService(
	cfg domain.Config,
	loader driven.DocumentLoader,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
) *IngestService {
	return &IngestService{
		cfg:      cfg,
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		pool:     NewEmbedPool(embedder, cfg.Embedding),
		retrier:  NewRetrier(cfg.Embedding.MaxRetries),
		progress: noopProgress{},
	}
}

// SetKeywordIndex enables keyword indexing for hybrid retrieval.
func (s *IngestService) SetKeywordIndex(k driven.KeywordIndex) {
	s.keyword = k
}

// SetMaterializer sets the source used when no local repository path is configured.
func (s *IngestService) SetMaterializer(m driven.SourceMaterializer) {
	s.source = m
}

// SetProgress sets the progress reporter. Nil disables progress output.
func (s *IngestService) SetProgress(p driven.ProgressReporter) {
	if p == nil {
		p = noopProgress{}
	}
	s.progress = p
}

// SetRetrier replaces the retry policy for embedding and index writes.
func (s *IngestService) SetRetrier(r Retrier) {
	s.retrier = r
	s.pool.WithRetrier(r)
}

// Run performs a full ingestion of the configured repository.
//
//nolint:gocognit // Orchestration loop over two channels
func (s *IngestService) Run(ctx context.Context) (*domain.RunSummary, error) {
	summary := domain.NewRunSummary(uuid.NewString(), s.cfg.Index.Name, s.embedder.ModelName())
	defer summary.Finish()

	root, err := s.prepare(ctx)
	if err != nil {
		return summary, err
	}

	logger.Section("Ingestion")
	logger.Debug("Source: %s", root)
	logger.Debug("Index: %s (%s)", s.cfg.Index.Name, s.cfg.Index.Backend)
	logger.Debug("Embedding model: %s (%d dimensions)", s.embedder.ModelName(), s.embedder.Dimensions())
	logger.Debug("Batch size: %d chunks, %d per embedding request", s.cfg.Index.BatchSize, s.cfg.Embedding.BatchSize)

	s.progress.Start(-1)
	defer s.progress.Finish()

	// stops the walk when Run returns early
	loadCtx, stop := context.WithCancel(ctx)
	defer stop()

	// records already indexed per source; whatever is left after the walk
	// belongs to files that no longer exist
	var existing map[string][]string
	err = s.retrier.Do(ctx, "list records", func(ctx context.Context) error {
		var err error
		existing, err = s.index.IDsBySource(ctx)
		return err
	})
	if err != nil {
		return summary, fmt.Errorf("list records: %w", err)
	}

	docsCh, errsCh := s.loader.Load(loadCtx, root)
	var buffer []domain.Chunk
	loadFailures := 0

	for docsCh != nil || errsCh != nil {
		select {
		case <-ctx.Done():
			summary.Cancelled = true
			return summary, ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			if fatal := s.recordLoadError(summary, err); fatal != nil {
				return summary, fatal
			}
			if _, skipped := domain.AsSkip(err); !skipped {
				loadFailures++
			}

		case doc, ok := <-docsCh:
			if !ok {
				docsCh = nil
				continue
			}
			s.progress.Describe(doc.Path)
			chunks, failed := s.chunkDocument(summary, doc)
			if !failed {
				if err := s.prune(ctx, doc.Path, staleIDs(existing[doc.Path], chunks)); err != nil {
					return summary, err
				}
			}
			delete(existing, doc.Path)
			buffer = append(buffer, chunks...)
			s.progress.Add(1)

			for len(buffer) >= s.cfg.Index.BatchSize {
				if ctx.Err() != nil {
					summary.Cancelled = true
					return summary, ctx.Err()
				}
				if err := s.flush(ctx, summary, buffer[:s.cfg.Index.BatchSize]); err != nil {
					return summary, err
				}
				buffer = buffer[s.cfg.Index.BatchSize:]
			}
		}
	}

	// the loader may close its channels on cancellation before ctx.Done is seen
	if err := ctx.Err(); err != nil {
		summary.Cancelled = true
		return summary, err
	}

	if len(buffer) > 0 {
		if err := s.flush(ctx, summary, buffer); err != nil {
			return summary, err
		}
	}

	if loadFailures > 0 {
		if len(existing) > 0 {
			logger.Warn("%d files failed to load, keeping records of %d unseen sources", loadFailures, len(existing))
		}
	} else {
		for path, ids := range existing {
			if err := s.prune(ctx, path, ids); err != nil {
				return summary, err
			}
			logger.Debug("Removed %d records of vanished %s", len(ids), path)
		}
	}

	logger.Debug("Ingestion complete: %d documents, %d chunks indexed, %d failed",
		summary.DocumentsProcessed, summary.ChunksIndexed, summary.ChunksFailed)
	return summary, nil
}

// Reindex replaces the records of the given paths, relative to the root of
// the last run (or the configured repository path).
func (s *IngestService) Reindex(ctx context.Context, paths []string) (*domain.RunSummary, error) {
	summary := domain.NewRunSummary(uuid.NewString(), s.cfg.Index.Name, s.embedder.ModelName())
	defer summary.Finish()

	root, err := s.prepare(ctx)
	if err != nil {
		return summary, err
	}

	var buffer []domain.Chunk
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			summary.Cancelled = true
			return summary, err
		}
		if _, err := s.Remove(ctx, path); err != nil {
			return summary, err
		}

		doc, err := s.loader.LoadFile(ctx, root, path)
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrExcluded):
			logger.Debug("%s is gone or excluded, records removed", path)
			continue
		case err != nil:
			if fatal := s.recordLoadError(summary, err); fatal != nil {
				return summary, fatal
			}
			continue
		}
		chunks, _ := s.chunkDocument(summary, doc)
		buffer = append(buffer, chunks...)
	}

	for len(buffer) > 0 {
		n := min(len(buffer), s.cfg.Index.BatchSize)
		if err := s.flush(ctx, summary, buffer[:n]); err != nil {
			return summary, err
		}
		buffer = buffer[n:]
	}
	return summary, nil
}

// Remove deletes every record of path from the vector and keyword indexes.
func (s *IngestService) Remove(ctx context.Context, path string) (int, error) {
	var ids []string
	err := s.retrier.Do(ctx, "delete "+path, func(ctx context.Context) error {
		var err error
		ids, err = s.index.DeleteBySource(ctx, path)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", path, err)
	}
	if s.keyword != nil && len(ids) > 0 {
		if err := s.keyword.Delete(ctx, ids); err != nil {
			logger.Warn("keyword index: removing %s: %v", path, err)
		}
	}
	return len(ids), nil
}

// prune deletes the given records of path from the vector and keyword
// indexes. Only fatal errors are returned.
func (s *IngestService) prune(ctx context.Context, path string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	err := s.retrier.Do(ctx, "prune "+path, func(ctx context.Context) error {
		_, err := s.index.Delete(ctx, ids)
		return err
	})
	if err != nil {
		if domain.Classify(err).Fatal() {
			return fmt.Errorf("prune %s: %w", path, err)
		}
		logger.Warn("prune %s: %v", path, err)
		return nil
	}
	if s.keyword != nil {
		if err := s.keyword.Delete(ctx, ids); err != nil {
			logger.Warn("keyword index: pruning %s: %v", path, err)
		}
	}
	return nil
}

// staleIDs returns the ids in old that chunks no longer produce.
func staleIDs(old []string, chunks []domain.Chunk) []string {
	if len(old) == 0 {
		return nil
	}
	current := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		current[c.ID] = true
	}
	var stale []string
	for _, id := range old {
		if !current[id] {
			stale = append(stale, id)
		}
	}
	return stale
}

// prepare validates configuration, resolves the repository root and makes
// sure the index schema matches the embedder.
func (s *IngestService) prepare(ctx context.Context) (string, error) {
	if err := s.cfg.Validate(); err != nil {
		return "", err
	}
	root, err := s.resolveRoot(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	recreate := s.cfg.Index.Recreate
	s.cfg.Index.Recreate = false
	s.mu.Unlock()
	if recreate {
		logger.Debug("Recreating index %s", s.cfg.Index.Name)
		if err := s.index.Drop(ctx); err != nil {
			return "", fmt.Errorf("drop index: %w", err)
		}
	}

	schema := domain.IndexSchema{
		Name:       s.cfg.Index.Name,
		Dimensions: s.embedder.Dimensions(),
		Model:      s.embedder.ModelName(),
	}
	err = s.retrier.Do(ctx, "ensure schema", func(ctx context.Context) error {
		return s.index.EnsureSchema(ctx, schema)
	})
	if err != nil {
		return "", fmt.Errorf("ensure schema: %w", err)
	}
	return root, nil
}

func (s *IngestService) resolveRoot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root != "" {
		return s.root, nil
	}
	switch {
	case s.cfg.Repo.Path != "":
		s.root = s.cfg.Repo.Path
	case s.source != nil:
		logger.Debug("Materializing %s", s.source.Describe())
		root, err := s.source.Materialize(ctx)
		if err != nil {
			return "", fmt.Errorf("materialize source: %w", err)
		}
		s.root = root
	default:
		return "", s.cfg.ValidateSource()
	}
	return s.root, nil
}

// recordLoadError files a loader error in the summary. It returns the error
// back only when it must abort the run.
func (s *IngestService) recordLoadError(summary *domain.RunSummary, err error) error {
	if se, ok := domain.AsSkip(err); ok {
		summary.RecordSkip(se)
		logger.Skip(se.Path, string(se.Reason))
		return nil
	}
	if domain.Classify(err).Fatal() {
		return err
	}
	summary.DocumentsFailed++
	logger.Warn("load: %v", err)
	return nil
}

// chunkDocument chunks one document and records the outcome. failed is set
// when chunking broke; a skipped document is not a failure.
func (s *IngestService) chunkDocument(summary *domain.RunSummary, doc domain.Document) (chunks []domain.Chunk, failed bool) {
	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		if se, ok := domain.AsSkip(err); ok {
			summary.RecordSkip(se)
			logger.Skip(se.Path, string(se.Reason))
			return nil, false
		}
		summary.DocumentsFailed++
		logger.Warn("chunk %s: %v", doc.Path, err)
		return nil, true
	}

	summary.DocumentsProcessed++
	summary.RecordChunks(chunks, func(st domain.Strategy) int {
		return s.cfg.Chunking.LimitsFor(st).MaxChars
	})
	logger.Debug("Chunked %s: %d chunks", doc.Path, len(chunks))
	return chunks, false
}

// flush embeds and writes one batch. It always runs to completion once
// started, even if ctx is cancelled meanwhile. Only fatal errors are returned.
func (s *IngestService) flush(ctx context.Context, summary *domain.RunSummary, batch []domain.Chunk) error {
	ctx = context.WithoutCancel(ctx)

	results, err := s.pool.Embed(ctx, batch)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	records := make([]domain.IndexRecord, 0, len(batch))
	byID := make(map[string]domain.Chunk, len(batch))
	for i, r := range results {
		if r.Err != nil {
			summary.RecordFailure(batch[i], r.Err.Error())
			continue
		}
		records = append(records, domain.NewIndexRecord(batch[i], r.Vector))
		byID[batch[i].ID] = batch[i]
	}
	if len(records) == 0 {
		return nil
	}

	var failures []domain.RecordFailure
	err = s.retrier.Do(ctx, "upsert", func(ctx context.Context) error {
		var err error
		failures, err = s.index.Upsert(ctx, records)
		return err
	})
	if err != nil {
		if domain.Classify(err).Fatal() {
			return fmt.Errorf("upsert: %w", err)
		}
		for _, r := range records {
			summary.RecordFailure(byID[r.ID], err.Error())
		}
		return nil
	}

	failed := make(map[string]bool, len(failures))
	for _, f := range failures {
		failed[f.ID] = true
		summary.RecordFailure(byID[f.ID], f.Err.Error())
	}
	written := records[:0]
	for _, r := range records {
		if !failed[r.ID] {
			written = append(written, r)
		}
	}
	summary.ChunksIndexed += len(written)

	if s.keyword != nil && len(written) > 0 {
		err := s.retrier.Do(ctx, "keyword index", func(ctx context.Context) error {
			return s.keyword.Index(ctx, written)
		})
		if err != nil {
			logger.Warn("keyword index: %v", err)
		}
	}
	logger.Debug("Flushed batch: %d written, %d failed", len(written), len(batch)-len(written))
	return nil
}

// noopProgress is used when no reporter is configured.
type noopProgress struct{}

func (noopProgress) Start(int) {}

func (noopProgress) Add(int) {}

func (noopProgress) Describe(string) {}

func (noopProgress) Finish() {}
