package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/passage/internal/embedding"
	"github.com/hyperjump/passage/internal/indexer"
	"github.com/hyperjump/passage/internal/models"
	"github.com/hyperjump/passage/internal/search"
)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	g, err := embedding.NewGateway(embedding.NewMockEmbedder(8), embedding.WithCache(64))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	m := NewManager(indexer.NewIndexer(g), search.NewEngine(g), opts...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_CreateGetDelete(t *testing.T) {
	m := newTestManager(t)

	s, err := m.Create()
	require.NoError(t, err)
	require.NotEmpty(t, s.ID())
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, []string{s.ID()}, m.IDs())

	require.NoError(t, m.Delete(s.ID()))
	assert.Zero(t, m.Len())

	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(s.ID()), models.ErrSessionNotFound)
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	_, err = a.Ingest(ctx, "a", "apples and oranges", 300)
	require.NoError(t, err)

	assert.Equal(t, StateReady, a.State())
	assert.Equal(t, StateEmpty, b.State())
	_, err = b.Query(ctx, "apples", 1)
	assert.ErrorIs(t, err, models.ErrNotReady)

	_, err = b.Ingest(ctx, "b", "trains and planes", 300)
	require.NoError(t, err)
	results, err := a.Query(ctx, "trains", 1)
	require.NoError(t, err)
	assert.Equal(t, "apples and oranges", results[0].Chunk.Text)
}

func TestManager_MaxSessions(t *testing.T) {
	m := newTestManager(t, WithMaxSessions(2))
	first, err := m.Create()
	require.NoError(t, err)
	_, err = m.Create()
	require.NoError(t, err)

	_, err = m.Create()
	assert.ErrorIs(t, err, models.ErrTooManySessions)

	require.NoError(t, m.Delete(first.ID()))
	_, err = m.Create()
	assert.NoError(t, err)
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(t)
	s, err := m.Create()
	require.NoError(t, err)
	_, err = s.Ingest(context.Background(), "doc", "some words", 1)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.Zero(t, m.Len())
	assert.Equal(t, StateEmpty, s.State())
}
