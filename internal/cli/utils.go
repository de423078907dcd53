// Package cli renders retrieval results and errors for the passage command line.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/passage/internal/models"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// EmptyQuestionWarning is printed when a blank question is entered interactively.
const EmptyQuestionWarning = "Please enter a question."

const separator = "---"

// ParseOutputFormat validates a -format flag value.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json)", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	if len(response.Results) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	fmt.Fprintln(w, "Most Relevant Passages:")
	fmt.Fprintln(w)
	for i, result := range response.Results {
		fmt.Fprintf(w, "Result %d (distance: %.4f)\n", i+1, result.Distance)
		fmt.Fprintln(w, result.Chunk.Text)
		fmt.Fprintln(w, separator)
	}
}

// WriteIngestSummary reports a successful ingest.
func WriteIngestSummary(w io.Writer, title string, chunks int) {
	if title == "" {
		fmt.Fprintf(w, "Indexed %d chunks.\n", chunks)
		return
	}
	fmt.Fprintf(w, "Indexed %d chunks from %s.\n", chunks, title)
}

// Describe turns an error into a message for the terminal. Known error kinds get a plain
// explanation; anything else is shown as is.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, models.ErrEmptyInput):
		return "Could not extract any text from this document."
	case errors.Is(err, models.ErrNotReady):
		return "No document is loaded yet."
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		return fmt.Sprintf("The embedding model is unavailable: %v", err)
	default:
		return err.Error()
	}
}
