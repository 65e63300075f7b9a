package llm

import (
	"context"
	"time"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/retry"
)

// RetryingProvider retries transient failures (rate limits, timeouts) of the
// wrapped provider with exponential backoff.
type RetryingProvider struct {
	next   LLMProvider
	policy retry.Policy
	logger logger.ILogger
}

var _ LLMProvider = &RetryingProvider{}

func NewRetryingProvider(next LLMProvider, policy retry.Policy, log logger.ILogger) *RetryingProvider {
	return &RetryingProvider{next: next, policy: policy, logger: log}
}

func (r *RetryingProvider) Chat(ctx context.Context, history []Message, opts ...Option) (string, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.next.Chat(ctx, history, opts...)
	}, r.notify("chat"))
}

func (r *RetryingProvider) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context) (string, error) {
		return r.next.Generate(ctx, prompt, opts...)
	}, r.notify("generate"))
}

func (r *RetryingProvider) notify(op string) func(error, time.Duration) {
	return func(err error, wait time.Duration) {
		r.logger.Warn("LLM", "Transient completion failure, retrying", map[string]interface{}{
			"op":    op,
			"wait":  wait.String(),
			"error": err.Error(),
		})
	}
}
