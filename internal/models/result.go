package models

// SearchResult is a single retrieved chunk with its squared Euclidean distance to the
// question embedding. Smaller distances are more similar.
type SearchResult struct {
	Distance float64 `json:"distance"`
	Chunk    Chunk   `json:"chunk"`
}

// SearchResponse is the response for a query against a session.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Question  string          `json:"question"`
	QueryTime int64           `json:"query_time_ms"`
}

// IngestResponse reports the outcome of ingesting a document.
type IngestResponse struct {
	Title      string `json:"title,omitempty"`
	Chunks     int    `json:"chunks"`
	Dimensions int    `json:"dimensions"`
	IndexType  string `json:"index_type"`
}
