// Package ollamaapi is the HTTP client shared by the Ollama embedding and
// chat adapters. It speaks the non-streaming JSON endpoints and maps
// failures onto the domain error classes.
package ollamaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// DefaultBaseURL is where a local Ollama listens.
const DefaultBaseURL = "http://localhost:11434"

// Client calls one Ollama server. Unreachable wraps every transport
// failure so the adapters report as embedding or LLM outages.
type Client struct {
	http        *http.Client
	baseURL     string
	unreachable error
}

// New creates a client for baseURL (DefaultBaseURL when empty).
func New(baseURL string, timeout time.Duration, unreachable error) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:        &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		unreachable: unreachable,
	}
}

// BaseURL returns the server address without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends in as JSON to path and decodes the reply into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("ollama: encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, req, out)
}

// Models lists the locally pulled model names.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.do(ctx, req, &tags); err != nil {
		return nil, err
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

// RequireModel checks the server is up and model has been pulled. A name
// without a tag matches its ":latest" variant.
func (c *Client) RequireModel(ctx context.Context, model string) error {
	names, err := c.Models(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == model || name == model+":latest" {
			return nil
		}
	}
	return fmt.Errorf("%w: ollama model %q is not pulled (run: ollama pull %s)",
		domain.ErrInvalidInput, model, model)
}

func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: ollama at %s: %v", c.unreachable, c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp, raw)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: ollama: decode %s: %v", domain.ErrTransient, req.URL.Path, err)
	}
	return nil
}

// statusError classifies a non-200 reply. Rate limits and server faults
// are transient; anything else (usually a missing model) is an input error.
func statusError(resp *http.Response, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != "" {
		msg = parsed.Error
	}

	class := domain.ErrInvalidInput
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		class = domain.ErrTransient
	}
	err := errors.Join(class, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, msg))

	if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
		return &domain.RetryAfterError{After: time.Duration(secs) * time.Second, Err: err}
	}
	return err
}
