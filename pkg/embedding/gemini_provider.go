package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-chatbot-be/pkg/errs"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1/models/%s:embedContent"

type geminiRequestPart struct {
	Text string `json:"text"`
}

type geminiRequestContent struct {
	Parts []geminiRequestPart `json:"parts"`
}

type geminiRequest struct {
	Model    string               `json:"model"`
	Content  geminiRequestContent `json:"content"`
	TaskType string               `json:"task_type,omitempty"`
}

type geminiResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

type GeminiProvider struct {
	ApiKey     string
	Model      string
	TaskType   string
	endpoint   string
	dimensions int
	client     *http.Client
}

func NewGeminiProvider(apiKey string, dimensions int) *GeminiProvider {
	model := "text-embedding-004"
	return &GeminiProvider{
		ApiKey:     apiKey,
		Model:      model,
		TaskType:   "RETRIEVAL_DOCUMENT",
		endpoint:   fmt.Sprintf(geminiEndpoint, model),
		dimensions: dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *GeminiProvider) Dimensions() int {
	return p.dimensions
}

func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, p, texts)
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(geminiRequest{
		Model: p.Model,
		Content: geminiRequestContent{
			Parts: []geminiRequestPart{{Text: text}},
		},
		TaskType: p.TaskType,
	})
	if err != nil {
		return nil, errs.NewServiceError("embedding", errs.KindInvalidRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, errs.NewServiceError("embedding", errs.KindInvalidRequest, err)
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return nil, errs.NewServiceError("embedding", errs.KindUnavailable, err)
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errs.NewServiceError("embedding", errs.KindUnavailable, err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, errs.FromStatus("embedding", res.StatusCode,
			fmt.Errorf("error from gemini response, code %d, body %s", res.StatusCode, string(resByte)))
	}

	var resEmbedding geminiResponse
	if err := json.Unmarshal(resByte, &resEmbedding); err != nil {
		return nil, errs.NewServiceError("embedding", errs.KindUnavailable, err)
	}

	return NormalizeVector(resEmbedding.Embedding.Values), nil
}
