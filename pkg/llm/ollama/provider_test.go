package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   got.Model,
			Message: ollamaMessage{Role: "assistant", Content: "Hello! How can I help?"},
			Done:    true,
		})
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "llama3")
	reply, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: "model", Content: "earlier"},
		{Role: llm.RoleUser, Content: "Hello"},
	}, llm.WithMaxTokens(64), llm.WithTemperature(0.2))

	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", reply)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 64, got.Options.NumPredict)
	assert.Equal(t, 0.2, got.Options.Temperature)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "assistant", got.Messages[1].Role)
}

func TestOllamaProvider_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   errs.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, errs.KindRateLimited},
		{"bad request", http.StatusBadRequest, errs.KindInvalidRequest},
		{"server error", http.StatusInternalServerError, errs.KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			_, err := NewOllamaProvider(server.URL, "llama3").Generate(context.Background(), "hi")

			kind, ok := errs.KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestOllamaProvider_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewOllamaProvider(url, "llama3").Generate(context.Background(), "hi")

	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindUnavailable, kind)
}
