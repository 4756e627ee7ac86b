package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns passages with provenance", func(t *testing.T) {
		retrieval := &mockRetrievalService{
			hits: []domain.ScoredRecord{
				hit("cmd/main.go", 0, 0.92, "package main"),
				hit("cmd/main.go", 1, 0.41, "func main() {}"),
			},
		}
		server, err := NewServer(&Ports{Retrieval: retrieval})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "entry point", K: 2})

		require.NoError(t, err)
		assert.Equal(t, 2, output.Count)
		require.Len(t, output.Passages, 2)
		first := output.Passages[0]
		assert.Equal(t, "cmd/main.go", first.SourcePath)
		assert.Equal(t, 0, first.SequenceIndex)
		assert.Equal(t, "code", first.Strategy)
		assert.Equal(t, "func main", first.Section)
		assert.Equal(t, 1, first.StartLine)
		assert.Equal(t, 4, first.EndLine)
		assert.Equal(t, 0.92, first.Score)
		assert.Equal(t, "package main", first.Text)
		assert.Equal(t, domain.ChunkID("cmd/main.go", 0, domain.StrategyCode), first.ID)
		assert.Equal(t, "entry point", retrieval.lastQuery)
		assert.Equal(t, 2, retrieval.lastK)
	})

	t.Run("missing k uses the configured default", func(t *testing.T) {
		retrieval := &mockRetrievalService{}
		server, err := NewServer(&Ports{Retrieval: retrieval, DefaultK: 7})
		require.NoError(t, err)

		_, output, err := server.handleRetrieve(ctx, nil, RetrieveInput{Query: "anything"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Empty(t, output.Passages)
		assert.Equal(t, 7, retrieval.lastK)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		retrieval := &mockRetrievalService{
			err: fmt.Errorf("%w: embedding backend down", domain.ErrEmbeddingUnavailable),
		}
		server, err := NewServer(&Ports{Retrieval: retrieval})
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "test"})

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with sources", func(t *testing.T) {
		answers := &mockAnswerService{
			answer: &domain.Answer{
				Text:    "The entry point is main in cmd/main.go.",
				Model:   "mistral",
				Sources: []domain.ScoredRecord{hit("cmd/main.go", 1, 0.8, "func main() {}")},
			},
		}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Answer: answers, DefaultK: 4})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "where does it start?"})

		require.NoError(t, err)
		assert.Equal(t, "The entry point is main in cmd/main.go.", output.Answer)
		assert.Equal(t, "mistral", output.Model)
		require.Len(t, output.Sources, 1)
		assert.Equal(t, "cmd/main.go", output.Sources[0].SourcePath)
		assert.Equal(t, 1, output.Sources[0].SequenceIndex)
		assert.Equal(t, 4, answers.lastK)
	})

	t.Run("returns error on answer failure", func(t *testing.T) {
		answers := &mockAnswerService{err: errors.New("llm unreachable")}
		server, err := NewServer(&Ports{Retrieval: &mockRetrievalService{}, Answer: answers})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{Question: "why?"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "llm unreachable")
	})
}

func TestPassages(t *testing.T) {
	assert.Empty(t, passages(nil))

	out := passages([]domain.ScoredRecord{hit("a.go", 3, 0.5, "x")})
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].SequenceIndex)
	assert.Equal(t, 0.5, out[0].Score)
}
