// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/kimchi/internal/adapters/driven/embedding/hash"
	ollamaembed "github.com/custodia-labs/kimchi/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/kimchi/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/kimchi/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/kimchi/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/kimchi/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Services holds the AI adapters of one process.
type Services struct {
	Embedding driven.EmbeddingService

	// LLM is nil when no chat provider is configured; only answer
	// synthesis needs it.
	LLM driven.LLMService
}

// NewServices creates the embedder and, when configured, the LLM.
func NewServices(cfg domain.Config) (*Services, error) {
	embedder, err := CreateEmbeddingService(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	llm, err := CreateLLMService(cfg.LLM)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	return &Services{Embedding: embedder, LLM: llm}, nil
}

// Close releases all resources held by the services.
func (s *Services) Close() {
	if s.Embedding != nil {
		_ = s.Embedding.Close()
	}
	if s.LLM != nil {
		_ = s.LLM.Close()
	}
}

// Ping checks that every configured provider is reachable.
func (s *Services) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var errs []error
	if s.Embedding != nil {
		if err := s.Embedding.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%w: embedding service unreachable: %w", domain.ErrEmbeddingUnavailable, err))
		}
	}
	if s.LLM != nil {
		if err := s.LLM.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%w: LLM service unreachable: %w", domain.ErrLLMUnavailable, err))
		}
	}
	return errors.Join(errs...)
}

// CreateEmbeddingService creates the embedding service selected by settings.
// Unlike the LLM, an embedder is always required.
func CreateEmbeddingService(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings.Provider == domain.AIProviderAnthropic {
		return nil, fmt.Errorf("%w: anthropic does not support embeddings, use openai, ollama or hash", domain.ErrInvalidInput)
	}
	if !settings.Provider.IsValidEmbedding() {
		return nil, fmt.Errorf("%w: unsupported embedding provider: %q", domain.ErrInvalidInput, settings.Provider)
	}
	if !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: %s embeddings need an API key (set OPENAI_API_KEY)",
			domain.ErrInvalidInput, settings.Provider)
	}

	switch settings.Provider {
	case domain.AIProviderHash:
		return hash.NewEmbeddingService(settings.Dimensions)

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      embeddingModel(settings),
			Dimensions: settings.Dimensions,
		})

	default:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      embeddingModel(settings),
			Dimensions: settings.Dimensions,
		})
	}
}

// CreateLLMService creates the LLM service selected by settings.
// Returns nil if the provider is not configured.
func CreateLLMService(settings domain.LLMSettings) (driven.LLMService, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   llmModel(settings),
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   llmModel(settings),
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   llmModel(settings),
		})

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %q", domain.ErrInvalidInput, settings.Provider)
	}
}

// embeddingModel returns the configured model, or "" so the adapter picks its
// own default when the OpenAI default was left in place for another provider.
func embeddingModel(settings domain.EmbeddingSettings) string {
	if settings.Model == domain.DefaultEmbeddingModel && settings.Provider != domain.AIProviderOpenAI {
		return ""
	}
	return settings.Model
}

// llmModel does the same for the Ollama default chat model.
func llmModel(settings domain.LLMSettings) string {
	if settings.Model == domain.DefaultLLMModel && settings.Provider != domain.AIProviderOllama {
		return ""
	}
	return settings.Model
}
