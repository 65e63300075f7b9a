package llm_test

import (
	"context"
	"testing"
	"time"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/llm"
	"ai-chatbot-be/pkg/llm/mock"
	"ai-chatbot-be/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetryingProvider_RecoversFromRateLimit(t *testing.T) {
	inner := mock.NewProvider("fallback").Push(
		mock.Response{Err: &errs.ServiceError{Service: "completion", Kind: errs.KindRateLimited}},
		mock.Response{Text: "second time lucky"},
	)
	p := llm.NewRetryingProvider(inner, fastPolicy(), logger.NewNopLogger())

	reply, err := p.Generate(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, "second time lucky", reply)
	assert.Equal(t, 2, inner.CallCount())
}

func TestRetryingProvider_InvalidRequestNotRetried(t *testing.T) {
	inner := mock.NewProvider("fallback").Push(
		mock.Response{Err: &errs.ServiceError{Service: "completion", Kind: errs.KindInvalidRequest}},
	)
	p := llm.NewRetryingProvider(inner, fastPolicy(), logger.NewNopLogger())

	_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})

	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindInvalidRequest, kind)
	assert.Equal(t, 1, inner.CallCount())
}

func TestSplitSystem(t *testing.T) {
	system, rest := llm.SplitSystem([]llm.Message{
		{Role: llm.RoleSystem, Content: "a"},
		{Role: llm.RoleUser, Content: "q"},
		{Role: llm.RoleSystem, Content: "b"},
	})

	assert.Equal(t, "a\n\nb", system)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "q"}}, rest)
}
