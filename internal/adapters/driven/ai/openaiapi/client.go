// Package openaiapi builds go-openai clients for the embedding and chat
// adapters and maps their errors onto the domain error classes. Any
// OpenAI-compatible endpoint works through BaseURL.
package openaiapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// Options configures a client. APIKey is required.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a client with its own HTTP timeout.
func NewClient(opts Options) (*openai.Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: openai: API key is required", domain.ErrInvalidInput)
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	return openai.NewClientWithConfig(cfg), nil
}

// Classify wraps err with the class that decides retries. Failures with
// no HTTP status never reached the API and wrap unreachable.
func Classify(err, unreachable error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
		status int
	)
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatusCode
	} else if errors.As(err, &reqErr) {
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == 0:
		return fmt.Errorf("%w: openai: %v", unreachable, err)
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: openai: status %d: %v", domain.ErrTransient, status, err)
	default:
		return fmt.Errorf("%w: openai: status %d: %v", domain.ErrInvalidInput, status, err)
	}
}
