// Package extract turns document files into plain text for ingestion.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content, selecting the format by
// file extension. Returns an error if the file cannot be read or parsed.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the given extension (with the leading
// dot, e.g. ".pdf"; case-insensitive). Unknown extensions are read as plain text. The result
// is NFC-normalized so visually identical text embeds identically.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(ext) {
	case ".pdf":
		text, err = extractPDF(content)
	case ".docx":
		text, err = extractDOCX(content)
	case ".odt", ".rtf":
		text, err = extractWithCat(content)
	case ".xlsx":
		text, err = extractExcel(content)
	case ".pptx":
		text, err = extractPPTX(content)
	case ".odp", ".ods":
		text, err = extractOpenDocument(content)
	default:
		text, err = extractPlain(content)
	}
	if err != nil {
		return "", err
	}
	return norm.NFC.String(text), nil
}

// Supported reports whether ext has a dedicated extractor rather than the plain text fallback.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".pptx", ".odp", ".ods", ".txt", ".md", ".rst":
		return true
	}
	return false
}
