package vector

import (
	"context"
	"fmt"

	"github.com/hyperjump/passage/internal/models"
)

// ctxCheckEvery is how many rows are scanned between context checks.
const ctxCheckEvery = 1024

// FlatIndex is an exact brute-force index. Vectors live in one contiguous slice of
// size*dimensions floats, row i at [i*dimensions, (i+1)*dimensions).
type FlatIndex struct {
	dimensions int
	size       int
	data       []float32
}

// Build copies vectors into a new FlatIndex in input order. It fails with ErrEmptyIndex
// when vectors is empty and ErrDimensionMismatch when lengths differ.
func Build(vectors [][]float32) (*FlatIndex, error) {
	dims, err := checkVectors(vectors)
	if err != nil {
		return nil, err
	}
	data := make([]float32, len(vectors)*dims)
	for i, vec := range vectors {
		copy(data[i*dims:(i+1)*dims], vec)
	}
	return &FlatIndex{dimensions: dims, size: len(vectors), data: data}, nil
}

// checkVectors validates a build input and returns its dimensionality.
func checkVectors(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, fmt.Errorf("%w: no vectors to index", models.ErrEmptyIndex)
	}
	dims := len(vectors[0])
	if dims == 0 {
		return 0, fmt.Errorf("%w: vector 0 has no components", models.ErrDimensionMismatch)
	}
	for i, vec := range vectors {
		if len(vec) != dims {
			return 0, fmt.Errorf("%w: vector %d has length %d, expected %d",
				models.ErrDimensionMismatch, i, len(vec), dims)
		}
	}
	return dims, nil
}

// Search scans every stored vector and returns the k nearest by squared Euclidean distance.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if err := f.checkQuery(query, k); err != nil {
		return nil, err
	}
	if k > f.size {
		k = f.size
	}
	best := newTopK(k)
	for i := 0; i < f.size; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		best.offer(Hit{Position: i, Distance: SquaredL2(query, f.row(i))})
	}
	return best.sorted(), nil
}

func (f *FlatIndex) checkQuery(query []float32, k int) error {
	if len(query) != f.dimensions {
		return fmt.Errorf("%w: query has length %d, index expects %d",
			models.ErrDimensionMismatch, len(query), f.dimensions)
	}
	if k <= 0 {
		return fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidArgument, k)
	}
	return nil
}

func (f *FlatIndex) row(i int) []float32 {
	return f.data[i*f.dimensions : (i+1)*f.dimensions]
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	return f.size
}

// Dimensions returns the vector length D.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
