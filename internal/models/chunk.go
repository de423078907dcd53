// Package models defines core data structures for chunks, queries, and search results.
package models

// Chunk is an ordered segment of a source document. Index is the chunk's position in
// source order and doubles as its position in the corpus vector index.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// DocumentInput is the input for ingesting a document into a session.
type DocumentInput struct {
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	ChunkSize int    `json:"chunk_size,omitempty"`
}
