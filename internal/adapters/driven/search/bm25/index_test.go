package bm25

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

func record(id, path, section, text string) domain.IndexRecord {
	return domain.IndexRecord{
		ID:       id,
		Text:     text,
		Metadata: domain.ChunkMetadata{SourcePath: path, Section: section},
	}
}

func seed(t *testing.T, idx *Index) {
	t.Helper()
	require.NoError(t, idx.Index(context.Background(), []domain.IndexRecord{
		record("cfg", "config.go", "func LoadConfig", "LoadConfig reads the TOML configuration file from disk."),
		record("walk", "walker.go", "func Walk", "Walk visits every file under the repository root."),
		record("readme", "README.md", "Installation", "Install kimchi with go install and set OPENAI_API_KEY."),
	}))
}

func TestIndex_Search(t *testing.T) {
	idx, err := NewMemory()
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)
	ctx := context.Background()

	t.Run("matches text", func(t *testing.T) {
		hits, err := idx.Search(ctx, "configuration file", 3)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "cfg", hits[0].ID)
		assert.Greater(t, hits[0].Score, 0.0)
	})

	t.Run("matches section heading", func(t *testing.T) {
		hits, err := idx.Search(ctx, "installation", 3)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "readme", hits[0].ID)
	})

	t.Run("limit", func(t *testing.T) {
		hits, err := idx.Search(ctx, "file repository configuration", 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("no match", func(t *testing.T) {
		hits, err := idx.Search(ctx, "zeppelin", 3)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := idx.Search(ctx, "  ", 3)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = idx.Search(ctx, "walk", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestIndex_ReplaceAndDelete(t *testing.T) {
	idx, err := NewMemory()
	require.NoError(t, err)
	defer idx.Close()
	seed(t, idx)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []domain.IndexRecord{record("walk", "walker.go", "", "Traverse directories lazily.")}))
	n, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	hits, err := idx.Search(ctx, "traverse", 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "walk", hits[0].ID)

	require.NoError(t, idx.Delete(ctx, []string{"walk", "unknown"}))
	hits, err = idx.Search(ctx, "traverse", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestOpen_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.bleve")
	ctx := context.Background()

	idx, err := Open(path)
	require.NoError(t, err)
	seed(t, idx)
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()
	assert.Equal(t, path, idx.Path())

	hits, err := idx.Search(ctx, "repository", 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "walk", hits[0].ID)
}
