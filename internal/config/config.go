// Package config provides configuration loading and structs for passage.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Vector    VectorConfig    `yaml:"vector"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "onnx", "openai", "ollama", "mock".
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"` // onnx
	Model      string `yaml:"model"`      // openai, ollama
	BaseURL    string `yaml:"base_url"`   // openai, ollama
	APIKeyEnv  string `yaml:"api_key_env"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	// Timeout bounds each call to a remote provider. Zero disables it.
	Timeout time.Duration `yaml:"timeout"`
	// MaxBatch splits large batches for providers with request size limits. Zero sends
	// every batch in one call.
	MaxBatch int `yaml:"max_batch"`
	Workers  int `yaml:"workers"`
	Retries  int `yaml:"retries"`
}

// RetrievalConfig holds chunking and query settings.
type RetrievalConfig struct {
	ChunkSize   int `yaml:"chunk_size"`
	TopK        int `yaml:"top_k"`
	MaxTopK     int `yaml:"max_top_k"`
	MaxSessions int `yaml:"max_sessions"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	IndexType string `yaml:"index_type"`
}

// WatchConfig holds document watch settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// IsRemote reports whether the provider is reached over the network.
func (e *EmbeddingConfig) IsRemote() bool {
	return e.Provider == ProviderOpenAI || e.Provider == ProviderOllama
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, filepath.Dir(path))
	return &cfg, nil
}

// Default returns a config with every default applied, for running without a config file.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Validate rejects settings that no component can work with.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderONNX, ProviderOpenAI, ProviderOllama, ProviderMock:
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}
	if c.Retrieval.ChunkSize <= 0 {
		return fmt.Errorf("retrieval.chunk_size must be positive, got %d", c.Retrieval.ChunkSize)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
