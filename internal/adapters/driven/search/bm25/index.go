// Package bm25 provides a BM25 keyword index over record text using bleve.
// It backs hybrid retrieval: vector and keyword rankings are fused by the
// retriever.
package bm25

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.KeywordIndex = (*Index)(nil)

// Field names in the bleve documents.
const (
	fieldText       = "text"
	fieldSection    = "section"
	fieldSourcePath = "source_path"
)

// Index is a bleve-backed keyword index keyed by record ID.
type Index struct {
	index bleve.Index
	path  string
}

// Open opens the index at path, creating it if absent. An index that cannot
// be opened is removed and rebuilt empty; the next ingestion run refills it.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("%w: creating keyword index: %v", domain.ErrIndexUnavailable, err)
		}
		return &Index{index: idx, path: path}, nil
	}
	if err != nil {
		logger.Warn("keyword index at %s is unreadable (%v), recreating", path, err)
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, fmt.Errorf("%w: removing keyword index: %v", domain.ErrIndexUnavailable, rmErr)
		}
		idx, err = bleve.New(path, buildMapping())
		if err != nil {
			return nil, fmt.Errorf("%w: recreating keyword index: %v", domain.ErrIndexUnavailable, err)
		}
	}
	return &Index{index: idx, path: path}, nil
}

// NewMemory creates an index that lives only in memory.
func NewMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("%w: creating keyword index: %v", domain.ErrIndexUnavailable, err)
	}
	return &Index{index: idx}, nil
}

// buildMapping indexes text and section with the standard analyzer and keeps
// the source path as a single keyword term.
func buildMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	doc.AddFieldMappingsAt(fieldText, textField)

	sectionField := bleve.NewTextFieldMapping()
	sectionField.Analyzer = standard.Name
	sectionField.Store = false
	doc.AddFieldMappingsAt(fieldSection, sectionField)

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	pathField.Store = true
	doc.AddFieldMappingsAt(fieldSourcePath, pathField)

	indexMapping.DefaultMapping = doc
	return indexMapping
}

// Index adds or replaces records in one batch.
func (i *Index) Index(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := i.index.NewBatch()
	for _, r := range records {
		err := batch.Index(r.ID, map[string]any{
			fieldText:       r.Text,
			fieldSection:    r.Metadata.Section,
			fieldSourcePath: r.Metadata.SourcePath,
		})
		if err != nil {
			return fmt.Errorf("keyword index %s: %w", r.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("%w: keyword batch: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Delete removes records by ID. Unknown IDs are ignored.
func (i *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("%w: keyword delete: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Search runs a match query over text and section headings.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]domain.KeywordHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidInput, limit)
	}

	textQuery := bleve.NewMatchQuery(query)
	textQuery.SetField(fieldText)
	sectionQuery := bleve.NewMatchQuery(query)
	sectionQuery.SetField(fieldSection)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(textQuery, sectionQuery))
	req.Size = limit

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: keyword search: %v", domain.ErrIndexUnavailable, err)
	}

	hits := make([]domain.KeywordHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, domain.KeywordHit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Count returns the number of indexed records.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}

// Path returns the on-disk location, empty for memory indexes.
func (i *Index) Path() string {
	return i.path
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}
