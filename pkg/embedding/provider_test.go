package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/pkg/errs"
	"ai-chatbot-be/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingProvider returns vectors of a fixed size and records calls
type countingProvider struct {
	mu     sync.Mutex
	embeds int
	fails  []error
}

func (c *countingProvider) Dimensions() int { return 3 }

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeds++
	if len(c.fails) > 0 {
		err := c.fails[0]
		c.fails = c.fails[1:]
		return nil, err
	}
	return []float32{float32(len(text)), 0, 0}, nil
}

func (c *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, c, texts)
}

func magnitude(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestNormalizeVector(t *testing.T) {
	got := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)

	zero := NormalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestOllamaProvider_Embed(t *testing.T) {
	var prompts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompts = append(prompts, req.Prompt)
		_ = json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float64{3, 0, 4}})
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL, "nomic-embed-text", 3)
	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []string{"a", "b"}, prompts)
	assert.InDelta(t, 1.0, magnitude(vecs[0]), 1e-6)
	assert.Equal(t, 3, p.Dimensions())
}

func TestOllamaProvider_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewOllamaProvider(server.URL, "", 3).Embed(context.Background(), "a")

	assert.True(t, errs.IsTransient(err))
}

func TestCachedProvider_ReusesQueryEmbedding(t *testing.T) {
	inner := &countingProvider{}
	cached, err := NewCachedProvider(inner, 100)
	require.NoError(t, err)
	defer cached.Close()

	first, err := cached.Embed(context.Background(), "what is the capital of france")
	require.NoError(t, err)
	cached.Wait()

	second, err := cached.Embed(context.Background(), "what is the capital of france")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.embeds)

	// Batches are never cached
	_, err = cached.EmbedBatch(context.Background(), []string{"what is the capital of france"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.embeds)
}

func TestRetryingProvider_Embed(t *testing.T) {
	inner := &countingProvider{fails: []error{
		&errs.ServiceError{Service: "embedding", Kind: errs.KindTimeout},
	}}
	p := NewRetryingProvider(inner, retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond}, logger.NewNopLogger())

	vec, err := p.Embed(context.Background(), "abc")

	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0, 0}, vec)
	assert.Equal(t, 2, inner.embeds)
	assert.Equal(t, 3, p.Dimensions())
}
