package retrieval

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/passage/internal/indexer"
	"github.com/hyperjump/passage/internal/models"
	"github.com/hyperjump/passage/internal/search"
)

// Manager holds independent sessions keyed by ID. Sessions share the indexer and engine,
// and through them the embedding gateway, but never a corpus.
type Manager struct {
	indexer     *indexer.Indexer
	engine      *search.Engine
	logger      *zap.Logger
	maxSessions int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions ingest with idx and query with engine.
func NewManager(idx *indexer.Indexer, engine *search.Engine, opts ...Option) *Manager {
	o := buildOptions(opts)
	return &Manager{
		indexer:     idx,
		engine:      engine,
		logger:      o.logger,
		maxSessions: o.maxSessions,
		sessions:    make(map[string]*Session),
	}
}

// Create starts an empty session with a fresh ID.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("%w: limit is %d", models.ErrTooManySessions, m.maxSessions)
	}
	s := NewSession(m.indexer, m.engine, WithLogger(m.logger))
	s.id = uuid.New().String()
	m.sessions[s.id] = s
	m.logger.Debug("session created", zap.String("session", s.id), zap.Int("sessions", len(m.sessions)))
	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete removes the session and releases its corpus.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	m.logger.Debug("session deleted", zap.String("session", id))
	return s.Close()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the live session IDs in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Close deletes every session.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		_ = s.Close()
	}
	return nil
}
