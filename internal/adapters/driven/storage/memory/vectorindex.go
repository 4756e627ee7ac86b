package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex.
// Contents are lost when the process exits.
type VectorIndex struct {
	mu      sync.RWMutex
	name    string
	schema  *domain.IndexSchema
	records map[string]domain.IndexRecord
	seq     int64
}

// NewVectorIndex creates an empty index with the given name.
func NewVectorIndex(name string) *VectorIndex {
	return &VectorIndex{
		name:    name,
		records: make(map[string]domain.IndexRecord),
	}
}

// EnsureSchema creates the schema if absent and verifies it otherwise.
func (v *VectorIndex) EnsureSchema(_ context.Context, schema domain.IndexSchema) error {
	if schema.Name != v.name {
		return fmt.Errorf("%w: schema name %q does not match index %q", domain.ErrInvalidInput, schema.Name, v.name)
	}
	if schema.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, schema.Dimensions)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.schema == nil {
		s := schema
		v.schema = &s
		return nil
	}
	if v.schema.Dimensions != schema.Dimensions {
		return fmt.Errorf("%w: index %q has %d dimensions, embedder produces %d",
			domain.ErrDimensionMismatch, v.name, v.schema.Dimensions, schema.Dimensions)
	}
	if v.schema.Model != schema.Model {
		return fmt.Errorf("%w: index %q was built with %q, embedder is %q",
			domain.ErrModelMismatch, v.name, v.schema.Model, schema.Model)
	}
	return nil
}

// Schema returns the schema or domain.ErrNotFound.
func (v *VectorIndex) Schema(_ context.Context) (*domain.IndexSchema, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.schema == nil {
		return nil, domain.ErrNotFound
	}
	s := *v.schema
	return &s, nil
}

// Upsert stores copies of the records. Overwrites keep the original seq.
func (v *VectorIndex) Upsert(_ context.Context, records []domain.IndexRecord) ([]domain.RecordFailure, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(records) == 0 {
		return nil, nil
	}
	if v.schema == nil {
		return nil, domain.ErrNotFound
	}
	for _, r := range records {
		if len(r.Vector) != v.schema.Dimensions {
			return nil, fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, r.ID, len(r.Vector), v.schema.Dimensions)
		}
	}

	var failures []domain.RecordFailure
	for _, r := range records {
		if r.ID == "" || r.Metadata.SourcePath == "" {
			failures = append(failures, domain.RecordFailure{
				ID:            r.ID,
				SourcePath:    r.Metadata.SourcePath,
				SequenceIndex: r.Metadata.SequenceIndex,
				Err:           fmt.Errorf("%w: record needs an id and a source path", domain.ErrInvalidInput),
			})
			continue
		}
		if existing, ok := v.records[r.ID]; ok {
			r.Seq = existing.Seq
		} else {
			v.seq++
			r.Seq = v.seq
		}
		r.Vector = append([]float32(nil), r.Vector...)
		v.records[r.ID] = r
	}
	return failures, nil
}

// Search scores every record against query and returns the best k.
func (v *VectorIndex) Search(_ context.Context, query []float32, k int) ([]domain.ScoredRecord, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.schema == nil {
		return nil, nil
	}
	if len(query) != v.schema.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), v.schema.Dimensions)
	}

	results := make([]domain.ScoredRecord, 0, len(v.records))
	for _, r := range v.records {
		results = append(results, domain.ScoredRecord{
			Record: r,
			Score:  domain.CosineSimilarity(query, r.Vector),
		})
	}
	return domain.SortScored(results, k), nil
}

// Get returns records by id in the requested order, skipping unknown ids.
func (v *VectorIndex) Get(_ context.Context, ids []string) ([]domain.IndexRecord, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []domain.IndexRecord
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if r, ok := v.records[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteBySource removes the records of one source file, returning their ids
// in insertion order.
func (v *VectorIndex) DeleteBySource(_ context.Context, sourcePath string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var victims []domain.IndexRecord
	for _, r := range v.records {
		if r.Metadata.SourcePath == sourcePath {
			victims = append(victims, r)
		}
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i].Seq < victims[j].Seq })

	ids := make([]string, len(victims))
	for i, r := range victims {
		ids[i] = r.ID
		delete(v.records, r.ID)
	}
	return ids, nil
}

// Delete removes records by id.
func (v *VectorIndex) Delete(_ context.Context, ids []string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := v.records[id]; ok {
			delete(v.records, id)
			n++
		}
	}
	return n, nil
}

// IDsBySource groups record ids by source path, each group in seq order.
func (v *VectorIndex) IDsBySource(_ context.Context) (map[string][]string, error) {
	v.mu.RLock()
	all := make([]domain.IndexRecord, 0, len(v.records))
	for _, r := range v.records {
		all = append(all, r)
	}
	v.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	out := make(map[string][]string)
	for _, r := range all {
		out[r.Metadata.SourcePath] = append(out[r.Metadata.SourcePath], r.ID)
	}
	return out, nil
}

// Count returns the number of records.
func (v *VectorIndex) Count(_ context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.records), nil
}

// Drop clears records and schema.
func (v *VectorIndex) Drop(_ context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = make(map[string]domain.IndexRecord)
	v.schema = nil
	v.seq = 0
	return nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}
