// Package ollama answers questions with a chat model served by Ollama.
package ollama

import (
	"context"
	"time"

	"github.com/custodia-labs/kimchi/internal/adapters/driven/ai/ollamaapi"
	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

// DefaultTimeout allows for the first request loading the model.
const DefaultTimeout = 120 * time.Second

// LLMConfig selects the server and model. Empty fields take defaults.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService calls /api/chat without streaming.
type LLMService struct {
	api   *ollamaapi.Client
	model string
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *options  `json:"options,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type chatResponse struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

// NewLLMService creates the adapter.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.Model == "" {
		cfg.Model = domain.DefaultLLMModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &LLMService{
		api:   ollamaapi.New(cfg.BaseURL, cfg.Timeout, domain.ErrLLMUnavailable),
		model: cfg.Model,
	}
}

// Chat returns the assistant message of a single non-streamed exchange.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := chatRequest{Model: s.model, Messages: make([]message, len(messages))}
	for i, m := range messages {
		req.Messages[i] = message(m)
	}
	if opts.MaxTokens > 0 || opts.Temperature > 0 || len(opts.Stop) > 0 {
		req.Options = &options{NumPredict: opts.MaxTokens, Temperature: opts.Temperature, Stop: opts.Stop}
	}

	var resp chatResponse
	if err := s.api.Post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// ModelName returns the chat model.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the server is up and the model is pulled.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.RequireModel(ctx, s.model)
}

// Close is a no-op.
func (s *LLMService) Close() error {
	return nil
}
