package mcp

import (
	"context"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	hits     []domain.ScoredRecord
	stats    *domain.IndexStats
	err      error
	statsErr error

	lastQuery string
	lastK     int
}

func (m *mockRetrievalService) Retrieve(_ context.Context, query string, k int) ([]domain.ScoredRecord, error) {
	m.lastQuery = query
	m.lastK = k
	return m.hits, m.err
}

func (m *mockRetrievalService) Stats(_ context.Context) (*domain.IndexStats, error) {
	if m.stats == nil && m.statsErr == nil {
		return &domain.IndexStats{}, nil
	}
	return m.stats, m.statsErr
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer *domain.Answer
	err    error

	lastK int
}

func (m *mockAnswerService) Ask(_ context.Context, query string, k int) (*domain.Answer, error) {
	m.lastK = k
	if m.err != nil {
		return nil, m.err
	}
	a := *m.answer
	a.Query = query
	return &a, nil
}

func hit(path string, seq int, score float64, text string) domain.ScoredRecord {
	return domain.ScoredRecord{
		Record: domain.IndexRecord{
			ID:   domain.ChunkID(path, seq, domain.StrategyCode),
			Text: text,
			Metadata: domain.ChunkMetadata{
				SourcePath:    path,
				SequenceIndex: seq,
				Strategy:      domain.StrategyCode,
				Section:       "func main",
				StartLine:     1,
				EndLine:       4,
			},
		},
		Score: score,
	}
}
