package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/passage/internal/config"
)

// New creates the Embedder selected by cfg.Provider. When the ONNX model cannot be loaded the
// mock embedder is used instead, so the CLI stays usable without a model on disk.
func New(cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case config.ProviderONNX:
		emb, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using mock embedder",
				zap.String("model_path", cfg.ModelPath),
				zap.Error(err),
			)
			return NewMockEmbedder(cfg.Dimensions), nil
		}
		return emb, nil
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(cfg.Model, cfg.BaseURL, cfg.APIKeyEnv, cfg.Dimensions)
	case config.ProviderOllama:
		return NewOllamaEmbedder(cfg.Model, cfg.BaseURL, cfg.Dimensions)
	case config.ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}

// NewGatewayFromConfig creates the configured Embedder and wraps it in a Gateway with the
// configured cache, timeout, batching and retry settings.
func NewGatewayFromConfig(cfg *config.EmbeddingConfig, logger *zap.Logger) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	emb, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts := []GatewayOption{
		WithCache(cfg.CacheSize),
		WithTimeout(cfg.Timeout),
		WithLogger(logger.Named("embedding")),
	}
	if cfg.MaxBatch > 0 {
		opts = append(opts, WithMaxBatch(cfg.MaxBatch, cfg.Workers))
	}
	if cfg.Retries > 0 {
		opts = append(opts, WithRetry(cfg.Retries, defaultRetryDelay))
	}
	g, err := NewGateway(emb, opts...)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}
	logger.Debug("embedding gateway ready",
		zap.String("provider", cfg.Provider),
		zap.Int("dimensions", g.Dimensions()),
	)
	return g, nil
}
