// Package ollama embeds text with a model served by a local Ollama.
package ollama

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/kimchi/internal/adapters/driven/ai/ollamaapi"
	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 30 * time.Second
)

// knownDimensions covers the common embedding models. Other models need
// Config.Dimensions set explicitly.
var knownDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"bge-m3":                 1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
}

// Config selects the server and model. Empty fields take defaults.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService calls /api/embed, one request per batch.
type EmbeddingService struct {
	api        *ollamaapi.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates the adapter. The vector size comes from
// cfg.Dimensions, else the model table; an unknown model without an
// explicit size is a configuration error.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions <= 0 {
		family, _, _ := strings.Cut(cfg.Model, ":")
		d, ok := knownDimensions[family]
		if !ok {
			return nil, fmt.Errorf("%w: ollama: unknown vector size for model %q, set embedding.dimensions",
				domain.ErrInvalidInput, cfg.Model)
		}
		cfg.Dimensions = d
	}
	return &EmbeddingService{
		api:        ollamaapi.New(cfg.BaseURL, cfg.Timeout, domain.ErrEmbeddingUnavailable),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed embeds a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order. A short reply is retried; a vector of
// the wrong size means the model does not match the configured dimensions.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{s.model, texts}
	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := s.api.Post(ctx, "/api/embed", req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama: %d vectors for %d inputs",
			domain.ErrTransient, len(resp.Embeddings), len(texts))
	}
	for i, v := range resp.Embeddings {
		if len(v) != s.dimensions {
			return nil, fmt.Errorf("%w: ollama: %s returned %d dimensions for input %d, expected %d",
				domain.ErrDimensionMismatch, s.model, len(v), i, s.dimensions)
		}
	}
	return resp.Embeddings, nil
}

// Dimensions returns the vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the embedding model.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping checks the server is up and the model is pulled.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.api.RequireModel(ctx, s.model)
}

// Close is a no-op.
func (s *EmbeddingService) Close() error {
	return nil
}
