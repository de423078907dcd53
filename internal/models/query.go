package models

import (
	"fmt"
	"strings"
)

// SearchQuery is a question asked against one ingested corpus.
type SearchQuery struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate rejects blank questions and applies the default and maximum result counts.
// maxTopK <= 0 disables the upper bound.
func (q *SearchQuery) Validate(defaultTopK, maxTopK int) error {
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrInvalidArgument)
	}
	if q.TopK == 0 {
		q.TopK = defaultTopK
	}
	if q.TopK < 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, q.TopK)
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	return nil
}
