package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeFlat uses in-memory exact brute-force search. The default.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeMemory is an alias of IndexTypeFlat kept for older configs.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS uses a FAISS IndexFlatL2. Requires the FAISS C library and
	// building with -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewVectorIndex builds an index of the given type over vectors.
// Supported types: "flat" (default), "memory", "faiss".
func NewVectorIndex(indexType string, vectors [][]float32) (VectorIndex, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, IndexTypeMemory, "":
		idx, err := Build(vectors)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case IndexTypeFAISS:
		idx, err := NewFAISSIndex(vectors)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
// This is determined by the build tag -tags=faiss.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex([][]float32{{0}})
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
