// Package openai provides an LLM service adapter using the OpenAI chat API.
package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/kimchi/internal/adapters/driven/ai/openaiapi"
	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig selects the account and model. APIKey is required; BaseURL
// points at Azure OpenAI or another compatible API.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService answers chat requests with the chat completions API.
type LLMService struct {
	client *openai.Client
	model  string
}

// NewLLMService creates the adapter. An API key is required.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	client, err := openaiapi.NewClient(openaiapi.Options{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &LLMService{client: client, model: cfg.Model}, nil
}

// Chat returns the first choice of a chat completion.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     s.model,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens: max(opts.MaxTokens, 0),
		Stop:      opts.Stop,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", openaiapi.Classify(err, domain.ErrLLMUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai: completion had no choices", domain.ErrTransient)
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the API key by listing models, without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return openaiapi.Classify(err, domain.ErrLLMUnavailable)
	}
	return nil
}

func (s *LLMService) Close() error {
	return nil
}
