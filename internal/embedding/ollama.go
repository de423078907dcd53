package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/hyperjump/passage/pkg/utils"
)

// OllamaEmbedder embeds through a local Ollama server using langchaingo.
type OllamaEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
}

// NewOllamaEmbedder creates an embedder for model served at serverURL (empty for the default).
func NewOllamaEmbedder(model, serverURL string, dimensions int) (*OllamaEmbedder, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return &OllamaEmbedder{embedder: embedder, dimensions: dimensions}, nil
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in input order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: got %d results for %d inputs", len(vectors), len(texts))
	}
	for _, vec := range vectors {
		utils.NormalizeL2(vec)
	}
	return vectors, nil
}

// Dimensions returns the configured dimension, or 0 when it is discovered on first use.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *OllamaEmbedder) Close() error {
	return nil
}
