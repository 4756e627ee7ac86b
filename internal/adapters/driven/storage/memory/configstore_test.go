package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetGetUnset(t *testing.T) {
	s := NewConfigStore()
	require.NoError(t, s.Set("index.name", "repo"))
	require.NoError(t, s.Set("index.batch_size", int64(50)))

	v, ok := s.Get("index.batch_size")
	require.True(t, ok)
	assert.Equal(t, int64(50), v)

	require.NoError(t, s.Unset("index.name"))
	require.NoError(t, s.Unset("never.set"))
	_, ok = s.Get("index.name")
	assert.False(t, ok)
	assert.Equal(t, []string{"index.batch_size"}, s.Keys())
}

func TestConfigStore_KeysSorted(t *testing.T) {
	s := NewConfigStore()
	for _, k := range []string{"retrieval.top_k", "embedding.model", "index.name"} {
		require.NoError(t, s.Set(k, 1))
	}
	assert.Equal(t, []string{"embedding.model", "index.name", "retrieval.top_k"}, s.Keys())
	assert.Equal(t, ":memory:", s.Path())
}
