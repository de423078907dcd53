// Package search answers questions against an ingested corpus.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/passage/internal/embedding"
	"github.com/hyperjump/passage/internal/indexer"
	"github.com/hyperjump/passage/internal/models"
	"github.com/hyperjump/passage/pkg/utils"
)

// Engine embeds questions and searches a corpus's vector index.
type Engine struct {
	gateway *embedding.Gateway
	logger  *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine that embeds questions through gateway.
func NewEngine(gateway *embedding.Gateway, opts ...EngineOption) *Engine {
	e := &Engine{gateway: gateway, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns the topK chunks of corpus nearest to question, closest first. Ties keep
// chunk order. A blank question is rejected before anything is embedded.
func (e *Engine) Search(ctx context.Context, corpus *indexer.Corpus, question string, topK int) ([]*models.SearchResult, error) {
	if corpus == nil || corpus.Index == nil {
		return nil, fmt.Errorf("%w: no document loaded", models.ErrNotReady)
	}
	query := &models.SearchQuery{Question: question, TopK: topK}
	if err := query.Validate(0, 0); err != nil {
		return nil, err
	}
	if query.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", models.ErrInvalidArgument, query.TopK)
	}

	vec, err := e.gateway.EmbedOne(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	hits, err := corpus.Index.Search(ctx, vec, query.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]*models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Position < 0 || hit.Position >= len(corpus.Chunks) {
			return nil, fmt.Errorf("%w: index returned position %d for %d chunks",
				models.ErrInvariantViolation, hit.Position, len(corpus.Chunks))
		}
		results = append(results, &models.SearchResult{
			Distance: hit.Distance,
			Chunk:    corpus.Chunks[hit.Position],
		})
	}
	e.logger.Debug("search complete",
		zap.String("question", utils.Preview(question, 80)),
		zap.Int("top_k", query.TopK),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// Query validates query against the given defaults, runs Search and times it.
func (e *Engine) Query(ctx context.Context, corpus *indexer.Corpus, query *models.SearchQuery, defaultTopK, maxTopK int) (*models.SearchResponse, error) {
	startTime := time.Now()
	if corpus == nil || corpus.Index == nil {
		return nil, fmt.Errorf("%w: no document loaded", models.ErrNotReady)
	}
	if err := query.Validate(defaultTopK, maxTopK); err != nil {
		return nil, err
	}
	results, err := e.Search(ctx, corpus, query.Question, query.TopK)
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Results:   results,
		Question:  query.Question,
		QueryTime: time.Since(startTime).Milliseconds(),
	}, nil
}
