// Package embedding wraps external text embedding models behind a batching, caching Gateway.
package embedding

import "context"

// Embedder is the external embedding capability: text in, fixed-length vectors out.
// EmbedBatch must preserve input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the output length, or 0 when it is only known after the first call.
	Dimensions() int
	Close() error
}
