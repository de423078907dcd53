package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/passage/internal/embedding"
	"github.com/hyperjump/passage/internal/extract"
	"github.com/hyperjump/passage/internal/models"
	"github.com/hyperjump/passage/internal/vector"
)

// Corpus is one ingested document: its chunks and the vector index built over them.
// Index position i holds the embedding of Chunks[i]. A Corpus is immutable once built.
type Corpus struct {
	Title      string
	Chunks     []models.Chunk
	Index      vector.VectorIndex
	Dimensions int
	BuiltAt    time.Time
}

// Size returns the number of chunks.
func (c *Corpus) Size() int {
	return len(c.Chunks)
}

// Close releases the vector index.
func (c *Corpus) Close() error {
	if c.Index == nil {
		return nil
	}
	return c.Index.Close()
}

// Indexer runs the ingest pipeline: chunk, embed in one batch, build the vector index.
type Indexer struct {
	gateway   *embedding.Gateway
	indexType string
	extractor *extract.Extractor
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithIndexType selects the vector index backend ("flat" or "faiss").
func WithIndexType(indexType string) IndexerOption {
	return func(idx *Indexer) { idx.indexType = indexType }
}

// WithExtractor sets the extractor used by BuildFile.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// WithLogger sets a logger for debug output (chunk counts, build times).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer that embeds through gateway.
func NewIndexer(gateway *embedding.Gateway, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		gateway:   gateway,
		indexType: string(vector.IndexTypeFlat),
		extractor: extract.NewExtractor(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Build chunks rawText into windows of chunkSize words, embeds every chunk in a single
// gateway batch, and builds a vector index over the results. Nothing is retained on error.
func (idx *Indexer) Build(ctx context.Context, title, rawText string, chunkSize int) (*Corpus, error) {
	start := time.Now()
	chunks, err := NewChunker(chunkSize).Chunk(rawText)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := idx.gateway.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d embeddings for %d chunks", models.ErrInvariantViolation, len(vectors), len(chunks))
	}

	index, err := vector.NewVectorIndex(idx.indexType, vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to build vector index: %w", err)
	}
	if index.Size() != len(chunks) {
		_ = index.Close()
		return nil, fmt.Errorf("%w: index holds %d vectors for %d chunks", models.ErrInvariantViolation, index.Size(), len(chunks))
	}

	corpus := &Corpus{
		Title:      title,
		Chunks:     chunks,
		Index:      index,
		Dimensions: index.Dimensions(),
		BuiltAt:    time.Now(),
	}
	idx.logger.Debug("corpus built",
		zap.String("title", title),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimensions", corpus.Dimensions),
		zap.String("index_type", index.Type()),
		zap.Duration("took", time.Since(start)),
	)
	return corpus, nil
}

// BuildFile extracts the text of the document at path and builds a corpus titled with the
// file name. If allowedExts is non-empty, the file's extension must be in the list
// (case-insensitive).
func (idx *Indexer) BuildFile(ctx context.Context, path string, chunkSize int, allowedExts []string) (*Corpus, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("%w: extension %q not in allowed list", models.ErrInvalidArgument, ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", models.ErrInvalidArgument, absPath)
	}
	idx.logger.Debug("extracting document", zap.String("path", absPath), zap.Int64("size", info.Size()))
	text, err := idx.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	return idx.Build(ctx, filepath.Base(absPath), text, chunkSize)
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}
