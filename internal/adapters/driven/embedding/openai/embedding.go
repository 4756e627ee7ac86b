// Package openai embeds text with the OpenAI embeddings endpoint or a
// compatible server.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/kimchi/internal/adapters/driven/ai/openaiapi"
	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultModel   = "text-embedding-3-large"
	DefaultTimeout = 60 * time.Second

	// fallbackDimensions is assumed for models missing from the table.
	fallbackDimensions = 1536
)

type modelInfo struct {
	dimensions int

	// shortenable models accept a smaller "dimensions" request parameter.
	shortenable bool
}

var models = map[string]modelInfo{
	"text-embedding-3-small": {1536, true},
	"text-embedding-3-large": {3072, true},
	"text-embedding-ada-002": {1536, false},
}

// Config selects the endpoint and model. Dimensions asks a text-embedding-3
// model for shortened vectors; for other models it only declares their size.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService sends one embeddings request per batch.
type EmbeddingService struct {
	client     *openai.Client
	model      string
	dimensions int
	shorten    bool
}

// NewEmbeddingService creates the adapter. An API key is required.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client, err := openaiapi.NewClient(openaiapi.Options{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}

	info, known := models[cfg.Model]
	if !known {
		info.dimensions = fallbackDimensions
	}
	s := &EmbeddingService{client: client, model: cfg.Model, dimensions: info.dimensions}
	if cfg.Dimensions > 0 {
		s.dimensions = cfg.Dimensions
		s.shorten = info.shortenable
	}
	return s, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in one request. Vectors are placed by the
// response's index field; a missing or out-of-range index is transient.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(s.model),
	}
	if s.shorten {
		req.Dimensions = s.dimensions
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, openaiapi.Classify(err, domain.ErrEmbeddingUnavailable)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("%w: openai: response index %d out of range", domain.ErrTransient, data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	for i, e := range embeddings {
		if e == nil {
			return nil, fmt.Errorf("%w: openai: no embedding for input %d", domain.ErrTransient, i)
		}
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping lists models, which checks the key without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return openaiapi.Classify(err, domain.ErrEmbeddingUnavailable)
	}
	return nil
}

// Close is a no-op.
func (s *EmbeddingService) Close() error {
	return nil
}
