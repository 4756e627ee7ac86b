package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := NewLLMService(LLMConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	return s
}

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(LLMConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	s, err := NewLLMService(LLMConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, s.ModelName())
}

func TestLLMService_Chat(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultLLMModel, body["model"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

		_, _ = w.Write([]byte(`{"id":"c","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"It walks the tree."},"finish_reason":"stop"}]}`))
	})

	got, err := s.Chat(context.Background(), []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "Answer from context."},
		{Role: driven.RoleUser, Content: "What does Walk do?"},
	}, driven.ChatOptions{MaxTokens: 64})

	require.NoError(t, err)
	assert.Equal(t, "It walks the tree.", got)
}

func TestLLMService_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrTransient},
		{"server error", http.StatusBadGateway, domain.ErrTransient},
		{"bad key", http.StatusUnauthorized, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"x"}}`))
			})
			_, err := s.Chat(context.Background(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "hi"}}, driven.ChatOptions{})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("no choices", func(t *testing.T) {
		s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		})
		_, err := s.Chat(context.Background(), []driven.ChatMessage{{Role: driven.RoleUser, Content: "hi"}}, driven.ChatOptions{})
		assert.ErrorIs(t, err, domain.ErrTransient)
	})
}
