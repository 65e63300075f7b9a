package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-chatbot-be/pkg/embedding"
	"ai-chatbot-be/pkg/errs"
)

type JinaProvider struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

var _ embedding.EmbeddingProvider = &JinaProvider{}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewJinaProvider uses jina-embeddings-v2-base-en (768 dimensions) unless baseURL
// points to a compatible deployment.
func NewJinaProvider(apiKey, baseURL string, dimensions int) *JinaProvider {
	if baseURL == "" {
		baseURL = "https://api.jina.ai/v1/embeddings"
	}
	return &JinaProvider{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      "jina-embeddings-v2-base-en",
		dimensions: dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *JinaProvider) Dimensions() int {
	return p.dimensions
}

func (p *JinaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request; Jina accepts an input array.
func (p *JinaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	jsonData, err := json.Marshal(embeddingRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, errs.NewServiceError("embedding", errs.KindInvalidRequest, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, errs.NewServiceError("embedding", errs.KindInvalidRequest, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.NewServiceError("embedding", errs.KindUnavailable, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, errs.FromStatus("embedding", resp.StatusCode,
			fmt.Errorf("jina api error (status %d): %s", resp.StatusCode, string(bodyBytes)))
	}

	var jinaResp embeddingResponse
	if err := json.Unmarshal(bodyBytes, &jinaResp); err != nil {
		return nil, errs.NewServiceError("embedding", errs.KindUnavailable, fmt.Errorf("failed to decode response: %w", err))
	}

	if jinaResp.Error != nil {
		return nil, errs.NewServiceError("embedding", errs.KindUnavailable, fmt.Errorf("jina api returned error: %s", jinaResp.Error.Message))
	}

	if len(jinaResp.Data) != len(texts) {
		return nil, errs.NewServiceError("embedding", errs.KindUnavailable,
			fmt.Errorf("jina returned %d embeddings for %d inputs", len(jinaResp.Data), len(texts)))
	}

	out := make([][]float32, len(texts))
	for _, d := range jinaResp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, errs.NewServiceError("embedding", errs.KindUnavailable, fmt.Errorf("jina returned index %d out of range", d.Index))
		}
		out[d.Index] = embedding.NormalizeVector(d.Embedding)
	}
	return out, nil
}
