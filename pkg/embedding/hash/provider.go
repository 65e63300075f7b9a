// Package hash is a deterministic, dependency-free embedder for tests and
// offline runs. Each word is hashed into a signed bucket, so texts sharing
// words get a positive cosine similarity.
package hash

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"ai-chatbot-be/pkg/embedding"
	"ai-chatbot-be/pkg/normalizer"
)

const DefaultDimensions = 384

type Provider struct {
	dimensions int
}

var _ embedding.EmbeddingProvider = &Provider{}

func NewProvider(dimensions int) *Provider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Provider{dimensions: dimensions}
}

func (p *Provider) Dimensions() int {
	return p.dimensions
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, p.dimensions)
	for _, token := range tokens(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(p.dimensions))
		if sum&(1<<63) != 0 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	// Empty text still gets a unit vector
	if isZero(vec) {
		vec[0] = 1
	}
	return embedding.NormalizeVector(vec), nil
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func tokens(text string) []string {
	return strings.FieldsFunc(normalizer.Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
