package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to any OpenAI compatible chat completion endpoint
type OpenAIProvider struct {
	client    *goopenai.Client
	ModelName string
}

var _ llm.LLMProvider = &OpenAIProvider{}

// NewOpenAIProvider builds a provider. baseURL may be empty for api.openai.com.
func NewOpenAIProvider(apiKey, baseURL, modelName string) *OpenAIProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:    goopenai.NewClientWithConfig(cfg),
		ModelName: modelName,
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.NewOptions(opts...)

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}

	messages := make([]goopenai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		messages[i] = goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   options.MaxTokens,
		Temperature: float32(options.Temperature),
	})
	if err != nil {
		return "", ServiceError("completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", errs.NewServiceError("completion", errs.KindUnavailable, errors.New("openai returned no choices"))
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

// ServiceError classifies a go-openai client error.
func ServiceError(service string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return errs.FromStatus(service, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusOK || reqErr.HTTPStatusCode == 0 {
			return errs.NewServiceError(service, errs.KindUnavailable, err)
		}
		return errs.FromStatus(service, reqErr.HTTPStatusCode, err)
	}
	return errs.NewServiceError(service, errs.KindUnavailable, fmt.Errorf("openai: %w", err))
}
