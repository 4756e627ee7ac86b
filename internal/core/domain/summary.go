package domain

import (
	"sort"
	"time"
)

// SkippedItem is a document that was not chunked, with the reason.
type SkippedItem struct {
	Path   string
	Reason SkipReason
	Detail string
}

// FailedChunk identifies a chunk that could not be embedded or written.
// It carries enough identity to retry the chunk.
type FailedChunk struct {
	ChunkID       string
	SourcePath    string
	SequenceIndex int
	Strategy      Strategy
	Reason        string
}

// ChunkStats aggregates chunk sizes (in runes) for one strategy.
type ChunkStats struct {
	Count      int
	MinChars   int
	MaxChars   int
	TotalChars int

	// Limit is the configured maximum for the strategy.
	Limit int
}

// Add records one chunk size.
func (s *ChunkStats) Add(size int) {
	if s.Count == 0 || size < s.MinChars {
		s.MinChars = size
	}
	if size > s.MaxChars {
		s.MaxChars = size
	}
	s.Count++
	s.TotalChars += size
}

// Average returns the mean chunk size, or zero when empty.
func (s ChunkStats) Average() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.TotalChars) / float64(s.Count)
}

// Utilisation returns MaxChars as a fraction of Limit.
func (s ChunkStats) Utilisation() float64 {
	if s.Limit == 0 {
		return 0
	}
	return float64(s.MaxChars) / float64(s.Limit)
}

// RunSummary reports an ingestion run. Per-item failures are aggregated here
// rather than aborting the run.
type RunSummary struct {
	RunID      string
	IndexName  string
	Model      string
	StartedAt  time.Time
	FinishedAt time.Time

	DocumentsProcessed int
	DocumentsSkipped   int
	DocumentsFailed    int

	ChunksProduced int
	ChunksIndexed  int
	ChunksFailed   int

	Skipped []SkippedItem
	Failed  []FailedChunk

	Strategies map[Strategy]*ChunkStats

	// Cancelled is set when the run stopped early between batches.
	Cancelled bool
}

// NewRunSummary creates an empty summary.
func NewRunSummary(runID, indexName, model string) *RunSummary {
	return &RunSummary{
		RunID:      runID,
		IndexName:  indexName,
		Model:      model,
		StartedAt:  time.Now(),
		Strategies: make(map[Strategy]*ChunkStats),
	}
}

// RecordSkip counts a skipped document.
func (r *RunSummary) RecordSkip(se *SkipError) {
	item := SkippedItem{Path: se.Path, Reason: se.Reason}
	if se.Err != nil {
		item.Detail = se.Err.Error()
	}
	r.Skipped = append(r.Skipped, item)
	r.DocumentsSkipped++
}

// RecordChunks counts chunks produced for one document.
func (r *RunSummary) RecordChunks(chunks []Chunk, limit func(Strategy) int) {
	for i := range chunks {
		s := chunks[i].Metadata.Strategy
		stats, ok := r.Strategies[s]
		if !ok {
			stats = &ChunkStats{Limit: limit(s)}
			r.Strategies[s] = stats
		}
		stats.Add(runeCount(chunks[i].Text))
	}
	r.ChunksProduced += len(chunks)
}

// RecordFailure counts a chunk that was not indexed.
func (r *RunSummary) RecordFailure(chunk Chunk, reason string) {
	r.Failed = append(r.Failed, FailedChunk{
		ChunkID:       chunk.ID,
		SourcePath:    chunk.Metadata.SourcePath,
		SequenceIndex: chunk.Metadata.SequenceIndex,
		Strategy:      chunk.Metadata.Strategy,
		Reason:        reason,
	})
	r.ChunksFailed++
}

// Finish stamps the end time.
func (r *RunSummary) Finish() {
	r.FinishedAt = time.Now()
}

// Duration returns the run's wall-clock time.
func (r *RunSummary) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// HasFailures returns true if any document or chunk failed.
func (r *RunSummary) HasFailures() bool {
	return r.DocumentsFailed > 0 || r.ChunksFailed > 0
}

// SkipReasons counts skips by reason, sorted by reason.
func (r *RunSummary) SkipReasons() []SkipCount {
	counts := make(map[SkipReason]int)
	for _, s := range r.Skipped {
		counts[s.Reason]++
	}
	out := make([]SkipCount, 0, len(counts))
	for reason, n := range counts {
		out = append(out, SkipCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reason < out[j].Reason })
	return out
}

// SkipCount is one row of SkipReasons.
type SkipCount struct {
	Reason SkipReason
	Count  int
}

func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
