package factory

import (
	"testing"

	"ai-chatbot-be/pkg/llm/anthropic"
	"ai-chatbot-be/pkg/llm/mock"
	"ai-chatbot-be/pkg/llm/ollama"
	"ai-chatbot-be/pkg/llm/openai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	tests := []struct {
		name, provider, baseURL, apiKey string
		want                            interface{}
		wantErr                         bool
	}{
		{name: "ollama", provider: "ollama", want: &ollama.OllamaProvider{}},
		{name: "openai", provider: "openai", apiKey: "sk", want: &openai.OpenAIProvider{}},
		{name: "openai compatible", provider: "openai", baseURL: "http://localhost:8000/v1", want: &openai.OpenAIProvider{}},
		{name: "openai without credentials", provider: "openai", wantErr: true},
		{name: "huggingface", provider: "huggingface", apiKey: "hf", want: &openai.OpenAIProvider{}},
		{name: "anthropic", provider: "anthropic", apiKey: "key", want: &anthropic.AnthropicProvider{}},
		{name: "anthropic without key", provider: "anthropic", wantErr: true},
		{name: "mock", provider: "mock", want: &mock.Provider{}},
		{name: "unknown", provider: "nope", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLLMProvider(tt.provider, "model", tt.baseURL, tt.apiKey)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, p)
		})
	}
}
