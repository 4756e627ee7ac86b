package ollamaapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

func serve(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", time.Second, domain.ErrEmbeddingUnavailable)
}

func TestNew_Defaults(t *testing.T) {
	c := New("", time.Second, domain.ErrLLMUnavailable)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestClient_Post(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/echo", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"value":"pong"}`))
	})

	var out struct {
		Value string `json:"value"`
	}
	require.NoError(t, c.Post(context.Background(), "/api/echo", map[string]string{"q": "ping"}, &out))
	assert.Equal(t, "pong", out.Value)
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		retryAfter string
		want       error
		wantAfter  time.Duration
		wantText   string
	}{
		{"missing model", http.StatusNotFound, `{"error":"model \"x\" not found"}`, "", domain.ErrInvalidInput, 0, "not found"},
		{"server fault", http.StatusInternalServerError, "boom", "", domain.ErrTransient, 0, "boom"},
		{"rate limited", http.StatusTooManyRequests, "", "3", domain.ErrTransient, 3 * time.Second, "429"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := serve(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.Post(context.Background(), "/api/x", struct{}{}, &struct{}{})

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.wantText)
			after, ok := domain.RetryAfter(err)
			assert.Equal(t, tt.wantAfter > 0, ok)
			assert.Equal(t, tt.wantAfter, after)
		})
	}
}

func TestClient_BadJSONIsTransient(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{"))
	})

	err := c.Post(context.Background(), "/api/x", struct{}{}, &struct{}{})

	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url, time.Second, domain.ErrLLMUnavailable).Post(context.Background(), "/api/chat", struct{}{}, &struct{}{})

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.True(t, domain.IsTransient(err))
}

func TestClient_RequireModel(t *testing.T) {
	c := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"},{"name":"mistral:7b"}]}`))
	})
	ctx := context.Background()

	names, err := c.Models(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nomic-embed-text:latest", "mistral:7b"}, names)

	assert.NoError(t, c.RequireModel(ctx, "nomic-embed-text"))
	assert.NoError(t, c.RequireModel(ctx, "mistral:7b"))

	err = c.RequireModel(ctx, "mistral")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "ollama pull mistral")
}
