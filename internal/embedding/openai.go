package embedding

import (
	"context"
	"fmt"
	"os"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/passage/pkg/utils"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. One EmbedBatch is one request.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder for model. The API key is read from the environment
// variable apiKeyEnv. baseURL may be empty for the public API. dimensions is sent to models that
// support shortened output; 0 keeps the model default and is discovered on first use.
func NewOpenAIEmbedder(model, baseURL, apiKeyEnv string, dimensions int) (*OpenAIEmbedder, error) {
	key := os.Getenv(apiKeyEnv)
	if key == "" && baseURL == "" {
		return nil, fmt.Errorf("%s environment variable not set", apiKeyEnv)
	}
	cfg := openai.DefaultConfig(key)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends texts in a single request and returns the vectors in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d results for %d inputs", len(resp.Data), len(texts))
	}

	// The API reports each item's input position; do not rely on response order.
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(texts))
	for i, item := range data {
		if item.Index != i {
			return nil, fmt.Errorf("openai embeddings: missing result for input %d", i)
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		utils.NormalizeL2(vec)
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the requested dimension, or 0 when the model default is used.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
