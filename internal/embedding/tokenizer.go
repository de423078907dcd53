package embedding

import (
	"strings"
	"unicode"
)

// BERT special token IDs and vocabulary bounds used by sentence-transformer exports.
const (
	padTokenID  = 0
	clsTokenID  = 101
	sepTokenID  = 102
	firstWordID = 1000
	vocabSize   = 30522
)

// Encoding is one fixed-length model input. All three slices have the requested length.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	// Tokens is the number of word tokens kept, excluding [CLS] and [SEP].
	Tokens    int
	Truncated bool
}

// Tokenizer encodes text into BERT-style model inputs.
type Tokenizer interface {
	Encode(text string, maxTokens int) Encoding
}

// BasicTokenizer lower-cases text, splits it on whitespace and punctuation, and maps every
// piece to a hashed vocabulary ID. It does not need a vocabulary file.
type BasicTokenizer struct{}

// Encode returns [CLS] tokens... [SEP] padded to maxTokens. Text longer than maxTokens-2
// pieces is truncated.
func (BasicTokenizer) Encode(text string, maxTokens int) Encoding {
	if maxTokens < 2 {
		maxTokens = 2
	}
	enc := Encoding{
		InputIDs:      make([]int64, maxTokens),
		AttentionMask: make([]int64, maxTokens),
		TokenTypeIDs:  make([]int64, maxTokens),
	}
	pieces := splitBasic(text)
	limit := maxTokens - 2
	if len(pieces) > limit {
		pieces = pieces[:limit]
		enc.Truncated = true
	}

	enc.InputIDs[0] = clsTokenID
	pos := 1
	for _, p := range pieces {
		enc.InputIDs[pos] = wordID(p)
		pos++
	}
	enc.InputIDs[pos] = sepTokenID
	for i := 0; i <= pos; i++ {
		enc.AttentionMask[i] = 1
	}
	for i := pos + 1; i < maxTokens; i++ {
		enc.InputIDs[i] = padTokenID
	}
	enc.Tokens = len(pieces)
	return enc
}

// splitBasic lower-cases text and splits it on whitespace, emitting each punctuation rune
// as its own piece.
func splitBasic(text string) []string {
	var pieces []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			pieces = append(pieces, b.String())
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			pieces = append(pieces, string(r))
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return pieces
}

// wordID maps a piece into the non-special part of the vocabulary.
func wordID(piece string) int64 {
	return int64(firstWordID + HashString(piece)%(vocabSize-firstWordID))
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
