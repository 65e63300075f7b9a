package openai

import (
	"context"
	"fmt"

	"ai-chatbot-be/pkg/embedding"
	"ai-chatbot-be/pkg/errs"
	llmopenai "ai-chatbot-be/pkg/llm/openai"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider embeds through the OpenAI embeddings API or a compatible server
type OpenAIProvider struct {
	client     *goopenai.Client
	model      string
	dimensions int
}

var _ embedding.EmbeddingProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, baseURL, model string, dimensions int) *OpenAIProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(goopenai.SmallEmbedding3)
	}
	return &OpenAIProvider{
		client:     goopenai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}
}

func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, llmopenai.ServiceError("embedding", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, errs.NewServiceError("embedding", errs.KindUnavailable,
			fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errs.NewServiceError("embedding", errs.KindUnavailable, fmt.Errorf("openai returned index %d out of range", d.Index))
		}
		out[d.Index] = embedding.NormalizeVector(d.Embedding)
	}
	return out, nil
}
