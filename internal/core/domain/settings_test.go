package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAIProvider_Traits(t *testing.T) {
	tests := []struct {
		provider  AIProvider
		embedding bool
		chat      bool
		keyed     bool
	}{
		{AIProviderOllama, true, true, false},
		{AIProviderOpenAI, true, true, true},
		{AIProviderAnthropic, false, true, true},
		{AIProviderHash, true, false, false},
		{AIProvider("cohere"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.provider.String(), func(t *testing.T) {
			assert.Equal(t, tt.embedding, tt.provider.IsValidEmbedding())
			assert.Equal(t, tt.chat, tt.provider.IsValidLLM())
			assert.Equal(t, tt.keyed, tt.provider.RequiresAPIKey())
		})
	}
}

func TestDescriptions(t *testing.T) {
	assert.Equal(t, "Ollama (local)", AIProviderOllama.Description())
	assert.Equal(t, unknownDescription, AIProvider("cohere").Description())
	assert.Contains(t, SearchModeHybrid.Description(), "rank fusion")
	assert.Equal(t, unknownDescription, SearchMode("fuzzy").Description())
	assert.False(t, SearchMode("fuzzy").IsValid())
	assert.True(t, IndexBackendMemory.IsValid())
	assert.False(t, IndexBackend("postgres").IsValid())
}
