package models

import "errors"

// Retrieval error kinds. Every layer wraps these with fmt.Errorf("...: %w", err) and never
// recovers from them; callers classify with errors.Is.
var (
	// ErrEmptyInput indicates the source text has no extractable words.
	ErrEmptyInput = errors.New("empty input")

	// ErrEmbeddingUnavailable indicates the embedding capability failed, timed out,
	// or returned malformed output.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrInvariantViolation indicates the embedding capability changed its output
	// dimensionality mid-stream.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrDimensionMismatch indicates vectors of different lengths were combined.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmptyIndex indicates an index build was attempted with no vectors.
	ErrEmptyIndex = errors.New("empty index")

	// ErrInvalidArgument indicates a bad k, chunk size, or blank question.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotReady indicates a query against a session without a built corpus.
	ErrNotReady = errors.New("not ready")

	// ErrSuperseded indicates an ingest finished after a newer ingest on the same session
	// started; its result was discarded.
	ErrSuperseded = errors.New("superseded")

	// ErrSessionNotFound indicates an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions indicates the session limit has been reached.
	ErrTooManySessions = errors.New("too many sessions")
)
