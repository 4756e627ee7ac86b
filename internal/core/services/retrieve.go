package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/core/ports/driving"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// Ensure RetrieveService implements the interface.
var _ driving.RetrievalService = (*RetrieveService)(nil)

// rrfK is the reciprocal rank fusion constant. It keeps the top ranks of one
// list from dominating the fused order.
const rrfK = 60

// hybridCandidates is how many hits each list contributes per requested result.
const hybridCandidates = 2

// RetrieveService answers similarity queries against the vector index, and
// in hybrid mode fuses them with keyword hits.
type RetrieveService struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	keyword  driven.KeywordIndex
	mode     domain.SearchMode
}

// NewRetrieveService creates a retriever. The embedder must be the one the
// index was built with.
func NewRetrieveService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	mode domain.SearchMode,
) *RetrieveService {
	return &RetrieveService{
		embedder: embedder,
		index:    index,
		mode:     mode,
	}
}

// SetKeywordIndex sets the keyword index used in hybrid mode.
func (s *RetrieveService) SetKeywordIndex(k driven.KeywordIndex) {
	s.keyword = k
}

// Retrieve returns at most k records, best first.
func (s *RetrieveService) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredRecord, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrInvalidInput)
	}

	logger.Section("Retrieval")
	logger.Debug("Query: %q, k=%d, mode=%s", query, k, s.mode)

	schema, err := s.index.Schema(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Debug("Index has not been created, returning no results")
		return []domain.ScoredRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	count, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	if count == 0 {
		logger.Debug("Index is empty, returning no results")
		return []domain.ScoredRecord{}, nil
	}

	if model := s.embedder.ModelName(); model != schema.Model {
		return nil, fmt.Errorf("%w: index %s was built with %s, query uses %s",
			domain.ErrModelMismatch, schema.Name, schema.Model, model)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) != schema.Dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(vector), schema.Dimensions)
	}

	var results []domain.ScoredRecord
	if s.mode == domain.SearchModeHybrid && s.keyword != nil {
		results, err = s.hybridSearch(ctx, query, vector, k)
	} else {
		if s.mode == domain.SearchModeHybrid {
			logger.Warn("Hybrid retrieval requested without a keyword index, using semantic only")
		}
		results, err = s.index.Search(ctx, vector, k)
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Debug("Results: %d", len(results))
	return results, nil
}

// Stats describes the index.
func (s *RetrieveService) Stats(ctx context.Context) (*domain.IndexStats, error) {
	stats := &domain.IndexStats{Mode: s.mode}

	schema, err := s.index.Schema(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return stats, nil
	case err != nil:
		return nil, fmt.Errorf("read schema: %w", err)
	}
	stats.Schema = schema

	stats.Records, err = s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}
	return stats, nil
}

// hybridSearch runs vector and keyword searches in parallel and merges them
// with reciprocal rank fusion. A failed keyword search degrades to the
// vector results; a failed vector search is an error.
func (s *RetrieveService) hybridSearch(
	ctx context.Context, query string, vector []float32, k int,
) ([]domain.ScoredRecord, error) {
	limit := k * hybridCandidates

	var (
		vectorHits  []domain.ScoredRecord
		keywordHits []domain.KeywordHit
		vectorErr   error
		keywordErr  error
		wg          sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorHits, vectorErr = s.index.Search(ctx, vector, limit)
	}()
	go func() {
		defer wg.Done()
		keywordHits, keywordErr = s.keyword.Search(ctx, query, limit)
	}()
	wg.Wait()

	if vectorErr != nil {
		return nil, vectorErr
	}
	if keywordErr != nil {
		logger.Warn("Keyword search failed, using vector results only: %v", keywordErr)
		return domain.SortScored(vectorHits, k), nil
	}
	logger.Debug("Merging %d vector + %d keyword hits with RRF", len(vectorHits), len(keywordHits))

	records := make(map[string]domain.IndexRecord, len(vectorHits)+len(keywordHits))
	scores := make(map[string]float64, len(vectorHits)+len(keywordHits))
	for rank, hit := range vectorHits {
		records[hit.Record.ID] = hit.Record
		scores[hit.Record.ID] += reciprocalRank(rank)
	}

	var missing []string
	for rank, hit := range keywordHits {
		if _, ok := scores[hit.ID]; !ok {
			missing = append(missing, hit.ID)
		}
		scores[hit.ID] += reciprocalRank(rank)
	}

	if len(missing) > 0 {
		fetched, err := s.index.Get(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load keyword hits: %w", err)
		}
		for _, r := range fetched {
			records[r.ID] = r
		}
	}

	merged := make([]domain.ScoredRecord, 0, len(scores))
	for id, score := range scores {
		r, ok := records[id]
		if !ok {
			// stale keyword entry with no vector record
			logger.Debug("Keyword hit %s has no record, dropped", id)
			continue
		}
		merged = append(merged, domain.ScoredRecord{Record: r, Score: score})
	}
	return domain.SortScored(merged, k), nil
}

func reciprocalRank(rank int) float64 {
	return 1.0 / float64(rrfK+rank+1)
}
