// Package anthropic answers chat requests with the Anthropic messages API.
// It serves answer synthesis only; Anthropic has no embedding endpoint.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

// Defaults applied when Config leaves a field empty.
const (
	DefaultBaseURL   = "https://api.anthropic.com/v1"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024
)

// Config selects the account and model. Only APIKey is required; BaseURL
// includes the version segment.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService is a driven.LLMService backed by the Anthropic messages API.
type LLMService struct {
	client  *anthropic.Client
	baseURL string
	model   string
}

// NewLLMService creates a client for cfg. It does not contact the API; use
// Ping to check the key.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic: API key is required", domain.ErrInvalidInput)
	}
	timeout := DefaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}
	s := &LLMService{
		baseURL: strings.TrimRight(cmp(cfg.BaseURL, DefaultBaseURL), "/"),
		model:   cmp(cfg.Model, DefaultModel),
	}
	s.client = anthropic.NewClient(cfg.APIKey,
		anthropic.WithBaseURL(s.baseURL),
		anthropic.WithAPIVersion(anthropic.APIVersion20230601),
		anthropic.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	return s, nil
}

func cmp(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Chat sends the conversation as one messages request. System turns are
// joined into the request's system prompt.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	system, turns := split(messages)
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: anthropic: at least one user message is required", domain.ErrInvalidInput)
	}
	req := anthropic.MessagesRequest{
		Model:         anthropic.Model(s.model),
		Messages:      turns,
		MaxTokens:     DefaultMaxTokens,
		System:        system,
		StopSequences: opts.Stop,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		req.Temperature = &t
	}

	resp, err := s.client.CreateMessages(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			out.WriteString(*block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("%w: anthropic: empty response", domain.ErrTransient)
	}
	return out.String(), nil
}

// split separates system turns from the conversation.
func split(messages []driven.ChatMessage) (string, []anthropic.Message) {
	var system []string
	turns := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case driven.RoleSystem:
			system = append(system, m.Content)
		case driven.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantTextMessage(m.Content))
		default:
			turns = append(turns, anthropic.NewUserTextMessage(m.Content))
		}
	}
	return strings.Join(system, "\n\n"), turns
}

func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the key and model by counting the tokens of a one-word
// message, which costs nothing.
func (s *LLMService) Ping(ctx context.Context) error {
	_, err := s.client.CountTokens(ctx, anthropic.MessagesRequest{
		Model:    anthropic.Model(s.model),
		Messages: []anthropic.Message{anthropic.NewUserTextMessage("ping")},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// Close is a no-op; the client holds no connections of its own.
func (s *LLMService) Close() error {
	return nil
}

// classify maps client errors onto the domain errors. Overload and rate
// limits are retried; bad keys and malformed requests are not.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var (
		apiErr *anthropic.APIError
		reqErr *anthropic.RequestError
	)
	switch {
	case errors.As(err, &apiErr):
		switch string(apiErr.Type) {
		case "rate_limit_error", "overloaded_error", "api_error":
			return fmt.Errorf("%w: anthropic: %v", domain.ErrTransient, err)
		}
		return fmt.Errorf("%w: anthropic: %v", domain.ErrInvalidInput, err)
	case errors.As(err, &reqErr) && reqErr.StatusCode > 0:
		return fmt.Errorf("%w: anthropic: %v", statusClass(reqErr.StatusCode), err)
	default:
		return fmt.Errorf("%w: anthropic: %v", domain.ErrLLMUnavailable, err)
	}
}

func statusClass(status int) error {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return domain.ErrTransient
	}
	return domain.ErrInvalidInput
}
