package embedding

import (
	"context"
	"time"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/retry"
)

// RetryingProvider retries transient embedding failures with backoff
type RetryingProvider struct {
	next   EmbeddingProvider
	policy retry.Policy
	logger logger.ILogger
}

var _ EmbeddingProvider = &RetryingProvider{}

func NewRetryingProvider(next EmbeddingProvider, policy retry.Policy, log logger.ILogger) *RetryingProvider {
	return &RetryingProvider{next: next, policy: policy, logger: log}
}

func (r *RetryingProvider) Dimensions() int {
	return r.next.Dimensions()
}

func (r *RetryingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context) ([]float32, error) {
		return r.next.Embed(ctx, text)
	}, r.notify(1))
}

func (r *RetryingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context) ([][]float32, error) {
		return r.next.EmbedBatch(ctx, texts)
	}, r.notify(len(texts)))
}

func (r *RetryingProvider) notify(size int) func(error, time.Duration) {
	return func(err error, wait time.Duration) {
		r.logger.Warn("EMBEDDING", "Transient embedding failure, retrying", map[string]interface{}{
			"batch_size": size,
			"wait":       wait.String(),
			"error":      err.Error(),
		})
	}
}
