// Package indexer turns raw document text into a searchable Corpus.
package indexer

import (
	"fmt"
	"strings"

	"github.com/hyperjump/passage/internal/models"
)

// Chunker splits text into contiguous, non-overlapping word windows.
type Chunker struct {
	chunkSize int
}

// NewChunker creates a chunker producing windows of chunkSize words.
func NewChunker(chunkSize int) *Chunker {
	return &Chunker{chunkSize: chunkSize}
}

// Chunk splits text on whitespace and groups the words into windows of exactly chunkSize
// words, re-joined with single spaces. The last window holds the remainder. Chunk i has
// Index i.
func (c *Chunker) Chunk(text string) ([]models.Chunk, error) {
	if c.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrInvalidArgument, c.chunkSize)
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no words to chunk", models.ErrEmptyInput)
	}
	chunks := make([]models.Chunk, 0, (len(words)+c.chunkSize-1)/c.chunkSize)
	for start := 0; start < len(words); start += c.chunkSize {
		end := min(start+c.chunkSize, len(words))
		chunks = append(chunks, models.Chunk{
			Index: len(chunks),
			Text:  strings.Join(words[start:end], " "),
		})
	}
	return chunks, nil
}
