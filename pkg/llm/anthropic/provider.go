package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/llm"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 1024

// AnthropicProvider calls the Claude Messages API
type AnthropicProvider struct {
	client    sdk.Client
	ModelName string
}

var _ llm.LLMProvider = &AnthropicProvider{}

// NewAnthropicProvider disables the SDK's own retries; callers wrap the
// provider with llm.NewRetryingProvider instead.
func NewAnthropicProvider(apiKey, baseURL, modelName string) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client:    sdk.NewClient(opts...),
		ModelName: modelName,
	}
}

func (p *AnthropicProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.NewOptions(opts...)

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}
	maxTokens := int64(defaultMaxTokens)
	if options.MaxTokens > 0 {
		maxTokens = int64(options.MaxTokens)
	}

	system, rest := llm.SplitSystem(history)
	if len(rest) == 0 {
		return "", errs.NewServiceError("completion", errs.KindInvalidRequest, errors.New("no user message"))
	}

	messages := make([]sdk.MessageParam, 0, len(rest))
	for _, msg := range rest {
		block := sdk.NewTextBlock(msg.Content)
		if msg.Role == llm.RoleAssistant {
			messages = append(messages, sdk.NewAssistantMessage(block))
		} else {
			messages = append(messages, sdk.NewUserMessage(block))
		}
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   maxTokens,
		Messages:    messages,
		Temperature: sdk.Float(options.Temperature),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{
			{Text: system},
		}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return "", errs.FromStatus("completion", apiErr.StatusCode, err)
		}
		return "", errs.NewServiceError("completion", errs.KindUnavailable, fmt.Errorf("claude API error: %w", err))
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}
