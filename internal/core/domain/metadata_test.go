package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMetadata() ChunkMetadata {
	return ChunkMetadata{
		SourcePath:    "pkg/calc/total.go",
		Extension:     ".go",
		SizeBytes:     2048,
		CreatedAt:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		ModifiedAt:    time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC),
		SequenceIndex: 4,
		Strategy:      StrategyCode,
		Section:       "func computeTotal",
		StartLine:     10,
		EndLine:       42,
	}
}

func TestChunkMetadata_FlattenRoundTripThroughJSON(t *testing.T) {
	m := sampleMetadata()

	data, err := json.Marshal(m.Flatten())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	got, err := MetadataFromMap(decoded)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestChunkMetadata_FlattenIsScalar(t *testing.T) {
	for key, v := range sampleMetadata().Flatten() {
		switch v.(type) {
		case string, int, int64:
		default:
			t.Errorf("key %s has non-scalar type %T", key, v)
		}
	}
}

func TestMetadataFromMap_Errors(t *testing.T) {
	t.Run("missing source path", func(t *testing.T) {
		_, err := MetadataFromMap(map[string]any{MetaStrategy: "code"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := MetadataFromMap(map[string]any{MetaSourcePath: "a.go", MetaStrategy: "nope"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("non-numeric sequence index", func(t *testing.T) {
		_, err := MetadataFromMap(map[string]any{
			MetaSourcePath:    "a.go",
			MetaStrategy:      "code",
			MetaSequenceIndex: "three",
		})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("zero timestamps allowed", func(t *testing.T) {
		m, err := MetadataFromMap(map[string]any{MetaSourcePath: "a.go", MetaStrategy: "code"})
		require.NoError(t, err)
		assert.True(t, m.CreatedAt.IsZero())
	})
}

func TestChunkMetadata_Provenance(t *testing.T) {
	assert.Equal(t, "pkg/calc/total.go#4", sampleMetadata().Provenance())
}

func TestMetadataFromDocument(t *testing.T) {
	doc := Document{Path: "README.md", Extension: ".md", SizeBytes: 12}
	m := MetadataFromDocument(doc)
	assert.Equal(t, "README.md", m.SourcePath)
	assert.Equal(t, ".md", m.Extension)
	assert.Equal(t, int64(12), m.SizeBytes)
}
