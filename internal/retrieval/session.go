// Package retrieval tracks per-session corpora and the ingest/query state machine.
package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/passage/internal/indexer"
	"github.com/hyperjump/passage/internal/models"
	"github.com/hyperjump/passage/internal/search"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateEmpty means no document has been ingested, or the session was reset.
	StateEmpty State = iota
	// StateIngesting means an ingest is running; queries are rejected.
	StateIngesting
	// StateReady means a corpus is loaded and queries are accepted.
	StateReady
	// StateFailed means the last ingest failed; Err reports why.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateIngesting:
		return "ingesting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "empty":
		*s = StateEmpty
	case "ingesting":
		*s = StateIngesting
	case "ready":
		*s = StateReady
	case "failed":
		*s = StateFailed
	default:
		return fmt.Errorf("unknown session state %q", text)
	}
	return nil
}

// Option configures a Session or Manager.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	maxSessions int
}

// WithLogger sets a logger for state transitions.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxSessions caps the number of live sessions in a Manager. Zero means no limit.
func WithMaxSessions(n int) Option {
	return func(o *options) { o.maxSessions = n }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Session owns at most one corpus. Ingest replaces it wholesale; Query is only accepted
// in StateReady. A Session is safe for concurrent use.
type Session struct {
	id      string
	indexer *indexer.Indexer
	engine  *search.Engine
	logger  *zap.Logger

	mu         sync.RWMutex
	state      State
	corpus     *indexer.Corpus
	err        error
	generation uint64
	createdAt  time.Time
	updatedAt  time.Time
}

// NewSession creates an empty session that ingests with idx and queries with engine.
func NewSession(idx *indexer.Indexer, engine *search.Engine, opts ...Option) *Session {
	o := buildOptions(opts)
	now := time.Now()
	return &Session{
		indexer:   idx,
		engine:    engine,
		logger:    o.logger,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the session ID assigned by a Manager, or "" for a standalone session.
func (s *Session) ID() string {
	return s.id
}

// Ingest builds a corpus from text and makes it the session's corpus. The previous corpus
// is dropped as soon as the ingest starts. On failure the session moves to StateFailed and
// holds no corpus. If another ingest starts before this one finishes, this result is
// discarded and ErrSuperseded is returned.
func (s *Session) Ingest(ctx context.Context, title, text string, chunkSize int) (*indexer.Corpus, error) {
	return s.ingest(ctx, title, func(ctx context.Context) (*indexer.Corpus, error) {
		return s.indexer.Build(ctx, title, text, chunkSize)
	})
}

// IngestFile is Ingest for a document on disk, extracted by file extension.
func (s *Session) IngestFile(ctx context.Context, path string, chunkSize int) (*indexer.Corpus, error) {
	return s.ingest(ctx, path, func(ctx context.Context) (*indexer.Corpus, error) {
		return s.indexer.BuildFile(ctx, path, chunkSize, nil)
	})
}

func (s *Session) ingest(ctx context.Context, title string, build func(context.Context) (*indexer.Corpus, error)) (*indexer.Corpus, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.dropCorpusLocked()
	s.state = StateIngesting
	s.err = nil
	s.updatedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug("ingest started", zap.String("session", s.id), zap.String("title", title))
	corpus, err := build(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		if corpus != nil {
			_ = corpus.Close()
		}
		s.logger.Debug("ingest superseded", zap.String("session", s.id), zap.String("title", title))
		return nil, fmt.Errorf("%w: a newer ingest replaced %q", models.ErrSuperseded, title)
	}
	s.updatedAt = time.Now()
	if err != nil {
		s.state = StateFailed
		s.err = err
		s.logger.Warn("ingest failed", zap.String("session", s.id), zap.String("title", title), zap.Error(err))
		return nil, err
	}
	s.state = StateReady
	s.corpus = corpus
	s.logger.Info("document ingested",
		zap.String("session", s.id),
		zap.String("title", title),
		zap.Int("chunks", corpus.Size()),
	)
	return corpus, nil
}

// Query returns the topK chunks nearest to question. It fails with ErrNotReady unless the
// session is in StateReady.
func (s *Session) Query(ctx context.Context, question string, topK int) ([]*models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return s.engine.Search(ctx, s.corpus, question, topK)
}

// Search validates query against the given defaults and answers it with timing.
func (s *Session) Search(ctx context.Context, query *models.SearchQuery, defaultTopK, maxTopK int) (*models.SearchResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return s.engine.Query(ctx, s.corpus, query, defaultTopK, maxTopK)
}

func (s *Session) readyLocked() error {
	if s.state != StateReady || s.corpus == nil {
		return fmt.Errorf("%w: session is %s", models.ErrNotReady, s.state)
	}
	return nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error of the last failed ingest, or nil.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Corpus returns the loaded corpus, or nil unless the session is ready.
func (s *Session) Corpus() *indexer.Corpus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corpus
}

// Reset discards the corpus and any in-flight ingest result and returns to StateEmpty.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.dropCorpusLocked()
	s.state = StateEmpty
	s.err = nil
	s.updatedAt = time.Now()
}

// Close releases the session's corpus.
func (s *Session) Close() error {
	s.Reset()
	return nil
}

// dropCorpusLocked must be called with s.mu held for writing. Queries hold the read lock
// for their whole search, so no query still uses the corpus being closed.
func (s *Session) dropCorpusLocked() {
	if s.corpus != nil {
		_ = s.corpus.Close()
		s.corpus = nil
	}
}

// Info is a point-in-time description of a session.
type Info struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	Title      string    `json:"title,omitempty"`
	Chunks     int       `json:"chunks"`
	Dimensions int       `json:"dimensions,omitempty"`
	IndexType  string    `json:"index_type,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{
		ID:        s.id,
		State:     s.state,
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
	if s.corpus != nil {
		info.Title = s.corpus.Title
		info.Chunks = s.corpus.Size()
		info.Dimensions = s.corpus.Dimensions
		info.IndexType = s.corpus.Index.Type()
	}
	if s.err != nil {
		info.Error = s.err.Error()
	}
	return info
}
