package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedProvider keeps recent single-text embeddings (queries) in a
// ristretto cache. Batches (document chunks) bypass the cache.
type CachedProvider struct {
	next  EmbeddingProvider
	cache *ristretto.Cache
}

var _ EmbeddingProvider = &CachedProvider{}

// NewCachedProvider caches up to maxItems vectors.
func NewCachedProvider(next EmbeddingProvider, maxItems int64) (*CachedProvider, error) {
	if maxItems <= 0 {
		maxItems = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedProvider{next: next, cache: cache}, nil
}

func (c *CachedProvider) Dimensions() int {
	return c.next.Dimensions()
}

// Embed looks up text verbatim. Callers pass normalized text so equivalent
// queries share an entry.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, 1)
	return vec, nil
}

func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.next.EmbedBatch(ctx, texts)
}

// Wait blocks until pending cache writes are visible.
func (c *CachedProvider) Wait() {
	c.cache.Wait()
}

func (c *CachedProvider) Close() {
	c.cache.Close()
}
