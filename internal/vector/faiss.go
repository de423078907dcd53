//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/hyperjump/passage/internal/models"
)

// FAISSIndex wraps a FAISS IndexFlatL2. FAISS labels are sequential from 0 in insertion
// order, so a label is the build position.
type FAISSIndex struct {
	index      *C.FaissIndexFlatL2
	dimensions int
	size       int
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS IndexFlatL2 and adds vectors in one bulk call.
func NewFAISSIndex(vectors [][]float32) (*FAISSIndex, error) {
	dims, err := checkVectors(vectors)
	if err != nil {
		return nil, err
	}

	var index *C.FaissIndexFlatL2
	ret := C.faiss_IndexFlatL2_new_with(&index, C.idx_t(dims))
	if ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}

	n := len(vectors)
	flat := make([]float32, n*dims)
	for i, vec := range vectors {
		copy(flat[i*dims:(i+1)*dims], vec)
	}
	ret = C.faiss_Index_add(index, C.idx_t(n), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		C.faiss_Index_free(index)
		return nil, fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}

	return &FAISSIndex{index: index, dimensions: dims, size: n}, nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Search returns the k nearest positions by squared L2 distance.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has length %d, index expects %d",
			models.ErrDimensionMismatch, len(query), f.dimensions)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidArgument, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return nil, fmt.Errorf("FAISS index is closed")
	}
	if k > f.size {
		k = f.size
	}

	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1, // nq (number of queries)
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	hits := make([]Hit, 0, k)
	for i := 0; i < k; i++ {
		if labels[i] < 0 || int(labels[i]) >= f.size {
			continue
		}
		d := float64(distances[i])
		if d < 0 {
			d = 0 // float rounding on identical vectors
		}
		hits = append(hits, Hit{Position: int(labels[i]), Distance: d})
	}
	// FAISS does not promise position order among equal distances.
	sortHits(hits)
	return hits, nil
}

// Size returns the number of indexed vectors.
func (f *FAISSIndex) Size() int {
	return f.size
}

// Dimensions returns the vector length D.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
