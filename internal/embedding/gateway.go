package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/passage/internal/models"
	"github.com/hyperjump/passage/pkg/utils"
)

const defaultRetryDelay = 200 * time.Millisecond

// Gateway is the only path from the retrieval core to an Embedder. It issues one external
// call per logical batch, serves repeated texts from an LRU cache, and pins the output
// dimensionality on first use. A Gateway is safe for concurrent use.
type Gateway struct {
	embedder  Embedder
	cache     *EmbeddingCache
	timeout   time.Duration
	maxBatch  int
	workers   int
	pool      *ants.Pool
	attempts  int
	baseDelay time.Duration
	logger    *zap.Logger

	mu    sync.Mutex
	dims  int
	calls atomic.Int64
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithCache enables an LRU cache of the given number of embeddings.
func WithCache(size int) GatewayOption {
	return func(g *Gateway) {
		if size > 0 {
			g.cache = NewEmbeddingCache(size)
		}
	}
}

// WithTimeout bounds every external call. Expiry surfaces as ErrEmbeddingUnavailable.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithMaxBatch splits batches larger than n into sub-batches embedded concurrently by up to
// workers goroutines. Use it for providers with a per-request input limit.
func WithMaxBatch(n, workers int) GatewayOption {
	return func(g *Gateway) {
		g.maxBatch = n
		g.workers = workers
	}
}

// WithRetry retries failed external calls with exponential backoff.
func WithRetry(attempts int, baseDelay time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.attempts = attempts
		g.baseDelay = baseDelay
	}
}

// WithLogger sets a logger for debug output (batch sizes, cache hits, retries).
func WithLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway wraps embedder. The Gateway owns embedder and closes it on Close.
func NewGateway(embedder Embedder, opts ...GatewayOption) (*Gateway, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	g := &Gateway{
		embedder:  embedder,
		attempts:  1,
		baseDelay: defaultRetryDelay,
		logger:    zap.NewNop(),
		dims:      embedder.Dimensions(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.maxBatch > 0 {
		workers := g.workers
		if workers <= 0 {
			workers = 4
		}
		pool, err := ants.NewPool(workers)
		if err != nil {
			return nil, fmt.Errorf("create embedding pool: %w", err)
		}
		g.pool = pool
	}
	return g, nil
}

// EmbedOne embeds a single text as a one-item batch.
func (g *Gateway) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	out, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts and returns one vector per text in input order.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	// Unique uncached texts, each mapped to every position it occupies.
	var misses []string
	positions := make(map[string][]int)
	for i, text := range texts {
		if g.cache != nil {
			if vec, ok := g.cache.Get(text); ok {
				out[i] = vec
				continue
			}
		}
		if _, seen := positions[text]; !seen {
			misses = append(misses, text)
		}
		positions[text] = append(positions[text], i)
	}
	g.logger.Debug("embedding batch",
		zap.Int("texts", len(texts)),
		zap.Int("misses", len(misses)),
	)
	if len(misses) == 0 {
		return out, nil
	}

	vectors, err := g.fetch(ctx, misses)
	if err != nil {
		return nil, err
	}
	for i, text := range misses {
		vec := vectors[i]
		if err := g.checkDimensions(vec); err != nil {
			return nil, err
		}
		if g.cache != nil {
			g.cache.Set(text, vec)
		}
		for _, pos := range positions[text] {
			out[pos] = vec
		}
	}
	return out, nil
}

// fetch embeds texts with one external call, or one call per sub-batch when WithMaxBatch
// is set. Result i always belongs to texts[i].
func (g *Gateway) fetch(ctx context.Context, texts []string) ([][]float32, error) {
	if g.pool == nil || len(texts) <= g.maxBatch {
		return g.call(ctx, texts)
	}

	out := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for start := 0; start < len(texts); start += g.maxBatch {
		end := min(start+g.maxBatch, len(texts))
		wg.Add(1)
		submitErr := g.pool.Submit(func() {
			defer wg.Done()
			vecs, err := g.call(subCtx, texts[start:end])
			if err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			copy(out[start:end], vecs)
		})
		if submitErr != nil {
			wg.Done()
			errOnce.Do(func() {
				firstErr = fmt.Errorf("%w: submit sub-batch: %w", models.ErrEmbeddingUnavailable, submitErr)
				cancel()
			})
			break
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// call performs one external invocation (plus retries) and validates its shape.
func (g *Gateway) call(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	err := retryWithBackoff(ctx, func() error {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		g.calls.Add(1)
		vectors, err := g.embedder.EmbedBatch(callCtx, texts)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
				g.logger.Warn("embedding call timed out", zap.Int("texts", len(texts)), zap.Duration("timeout", g.timeout))
			}
			return fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: embedder returned %d vectors for %d texts",
				models.ErrEmbeddingUnavailable, len(vectors), len(texts))
		}
		result = make([][]float32, len(vectors))
		for i, vec := range vectors {
			if !utils.AllFinite(vec) {
				return fmt.Errorf("%w: vector %d has non-finite components", models.ErrEmbeddingUnavailable, i)
			}
			// Providers may reuse output buffers between calls.
			result[i] = append([]float32(nil), vec...)
		}
		return nil
	}, g.attempts, g.baseDelay)
	if err != nil {
		if !errors.Is(err, models.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
		}
		return nil, err
	}
	return result, nil
}

// checkDimensions pins D on first use and rejects any later vector of another length.
func (g *Gateway) checkDimensions(vec []float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dims == 0 {
		if len(vec) == 0 {
			return fmt.Errorf("%w: embedder returned an empty vector", models.ErrInvariantViolation)
		}
		g.dims = len(vec)
		return nil
	}
	if len(vec) != g.dims {
		return fmt.Errorf("%w: embedder returned %d dimensions, expected %d",
			models.ErrInvariantViolation, len(vec), g.dims)
	}
	return nil
}

// Dimensions returns the pinned vector length D, or 0 before the first embedding.
func (g *Gateway) Dimensions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dims
}

// CacheStats reports cache usage. It is zero when the cache is disabled.
func (g *Gateway) CacheStats() CacheStats {
	if g.cache == nil {
		return CacheStats{}
	}
	return g.cache.Stats()
}

// Calls returns the number of external embedder invocations made so far.
func (g *Gateway) Calls() int64 {
	return g.calls.Load()
}

// Close releases the worker pool and closes the wrapped embedder.
func (g *Gateway) Close() error {
	if g.pool != nil {
		g.pool.Release()
	}
	return g.embedder.Close()
}
