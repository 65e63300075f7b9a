package factory

import (
	"fmt"

	"ai-chatbot-be/pkg/llm"
	"ai-chatbot-be/pkg/llm/anthropic"
	"ai-chatbot-be/pkg/llm/mock"
	"ai-chatbot-be/pkg/llm/ollama"
	"ai-chatbot-be/pkg/llm/openai"
)

// NewLLMProvider builds the completion backend named by providerType.
func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		if apiKey == "" && baseURL == "" {
			return nil, fmt.Errorf("openai provider needs an api key or a compatible base url")
		}
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName), nil
	case "huggingface":
		// The Hugging Face router speaks the OpenAI chat completion protocol
		if baseURL == "" {
			baseURL = "https://router.huggingface.co/v1"
		}
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName), nil
	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic provider needs an api key")
		}
		return anthropic.NewAnthropicProvider(apiKey, baseURL, modelName), nil
	case "mock":
		return mock.NewProvider("This is a canned reply."), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
