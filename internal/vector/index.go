// Package vector provides build-once vector indexes with exact nearest-neighbour search.
package vector

import "context"

// VectorIndex is an immutable index over a dense, ordered set of vectors. Position i of the
// index is the i-th vector passed at build time.
type VectorIndex interface {
	// Search returns the min(k, Size()) nearest positions to query, ascending by squared
	// Euclidean distance with ties broken by ascending position.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Hit is a single nearest-neighbour result.
type Hit struct {
	Position int
	Distance float64 // squared Euclidean distance, >= 0
}
