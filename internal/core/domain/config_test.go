package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultTopK, cfg.Retrieval.TopK)
	assert.Equal(t, DefaultIndexBatchSize, cfg.Index.BatchSize)
	assert.Equal(t, DefaultOverlap, cfg.Chunking.Overlap)
	assert.Contains(t, cfg.Repo.ExcludeDirs, "node_modules")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing index name", func(c *Config) { c.Index.Name = "" }},
		{"zero top-k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"negative top-k", func(c *Config) { c.Retrieval.TopK = -1 }},
		{"unknown mode", func(c *Config) { c.Retrieval.Mode = "fuzzy" }},
		{"unknown backend", func(c *Config) { c.Index.Backend = "redis" }},
		{"zero batch", func(c *Config) { c.Index.BatchSize = 0 }},
		{"zero max file size", func(c *Config) { c.Repo.MaxFileSize = 0 }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -0.1 }},
		{"overlap too large", func(c *Config) { c.Chunking.Overlap = 0.5 }},
		{"zero chunk size", func(c *Config) {
			c.Chunking.Limits[StrategyRecord] = ChunkLimits{MaxChars: 0}
		}},
		{"unknown strategy limit", func(c *Config) {
			c.Chunking.Limits["xml"] = ChunkLimits{MaxChars: 10}
		}},
		{"unknown embedding provider", func(c *Config) { c.Embedding.Provider = AIProviderAnthropic }},
		{"missing model", func(c *Config) { c.Embedding.Model = "" }},
		{"zero workers", func(c *Config) { c.Embedding.Workers = 0 }},
		{"negative rate", func(c *Config) { c.Embedding.RequestsPerSecond = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestConfig_ValidateSource(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.ValidateSource(), ErrInvalidInput)

	cfg.Repo.Path = "/tmp/repo"
	assert.NoError(t, cfg.ValidateSource())

	cfg.Repo.Path = ""
	cfg.GitHub.Owner, cfg.GitHub.Repo = "acme", "widgets"
	assert.ErrorIs(t, cfg.ValidateSource(), ErrInvalidInput)

	cfg.GitHub.Branch = "main"
	assert.NoError(t, cfg.ValidateSource())
	assert.Contains(t, cfg.GitHub.LocalPath(), "acme")
}

func TestChunkingConfig_LimitsFor(t *testing.T) {
	c := ChunkingConfig{Limits: map[Strategy]ChunkLimits{StrategyCode: {MaxChars: 10, MaxLines: 2}}}
	assert.Equal(t, 10, c.LimitsFor(StrategyCode).MaxChars)
	assert.Equal(t, DefaultChunkLimits()[StrategyPlainText], c.LimitsFor(StrategyPlainText))
}

func TestSettings_Providers(t *testing.T) {
	assert.True(t, AIProviderHash.IsValidEmbedding())
	assert.False(t, AIProviderHash.IsValidLLM())
	assert.True(t, AIProviderAnthropic.IsValidLLM())
	assert.False(t, AIProviderAnthropic.IsValidEmbedding())

	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "k"}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())

	assert.True(t, SearchModeHybrid.RequiresKeywordIndex())
	assert.False(t, SearchModeSemantic.RequiresKeywordIndex())
}
