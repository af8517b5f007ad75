package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/marketmatch/marketmatch/internal/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// apiTimeout bounds every embedding request. Batch embedding of large
// documents can take a while, so this is deliberately generous.
const apiTimeout = 60 * time.Second

// OpenAIProvider generates embeddings through the OpenAI embeddings
// endpoint.
type OpenAIProvider struct {
	client     *resty.Client
	model      string
	dimensions int
}

// NewOpenAIProvider creates an OpenAI embedding provider from the
// given configuration. BaseURL overrides the public endpoint for
// proxies and compatible servers.
func NewOpenAIProvider(cfg config.EmbeddingConfig) *OpenAIProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(apiTimeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	return &OpenAIProvider{
		client:     client,
		model:      cfg.Model,
		dimensions: dimensions,
	}
}

// Name identifies the provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Dimensions returns the vector length.
func (p *OpenAIProvider) Dimensions() int { return p.dimensions }

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// EmbedQuery embeds a single search query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := p.EmbedDocuments(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedDocuments embeds a batch of texts in one request, returning the
// vectors in input order.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openAIEmbeddingRequest{
		Model: p.model,
		Input: texts,
	}

	var resp openAIEmbeddingResponse
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post("/embeddings")

	if err != nil {
		return nil, fmt.Errorf("failed to call embeddings API: %w", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil && resp.Error.Message != "" {
			return nil, fmt.Errorf("embeddings API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("embeddings API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	// The API may return items out of order; restore input order by index.
	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}
