// Package integration exercises the retrieval pipeline end to end: extraction, chunking,
// embedding, indexing, sessions and file watching.
package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/passage/internal/config"
	"github.com/hyperjump/passage/internal/embedding"
	"github.com/hyperjump/passage/internal/indexer"
	"github.com/hyperjump/passage/internal/models"
	"github.com/hyperjump/passage/internal/retrieval"
	"github.com/hyperjump/passage/internal/search"
	"github.com/hyperjump/passage/internal/watcher"
)

const handbook = `Refunds are issued within thirty days of purchase when the receipt is shown.
Shipping to remote islands takes up to three weeks and costs extra.
Support is available on weekdays between nine and five by phone or email.`

func newManager(t *testing.T) *retrieval.Manager {
	t.Helper()
	cfg := config.Default()
	cfg.Embedding.Provider = config.ProviderMock
	cfg.Embedding.Dimensions = 32
	gateway, err := embedding.NewGatewayFromConfig(&cfg.Embedding, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = gateway.Close() })
	idx := indexer.NewIndexer(gateway, indexer.WithIndexType(cfg.Vector.IndexType))
	manager := retrieval.NewManager(idx, search.NewEngine(gateway))
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func TestIntegration_IngestFileAndQuery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "handbook.md")
	if err := os.WriteFile(path, []byte(handbook), 0600); err != nil {
		t.Fatal(err)
	}

	session, err := newManager(t).Create()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	corpus, err := session.IngestFile(ctx, path, 12)
	if err != nil {
		t.Fatal(err)
	}
	if corpus.Title != "handbook.md" {
		t.Errorf("title = %q", corpus.Title)
	}
	words := len(strings.Fields(handbook))
	if want := (words + 11) / 12; corpus.Size() != want {
		t.Errorf("chunks = %d, want %d", corpus.Size(), want)
	}

	// Every chunk is its own nearest neighbour.
	for _, chunk := range corpus.Chunks {
		results, err := session.Query(ctx, chunk.Text, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 || results[0].Chunk.Index != chunk.Index || results[0].Distance != 0 {
			t.Errorf("query %q: got %+v", chunk.Text, results)
		}
	}

	resp, err := session.Search(ctx, &models.SearchQuery{Question: "refund receipt"}, 3, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(resp.Results))
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Distance < resp.Results[i-1].Distance {
			t.Errorf("results not ascending at %d", i)
		}
	}
}

func TestIntegration_ReplaceDocument(t *testing.T) {
	session, err := newManager(t).Create()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := session.Ingest(ctx, "first", handbook, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := session.Ingest(ctx, "second", "alpha beta gamma", 10); err != nil {
		t.Fatal(err)
	}
	results, err := session.Query(ctx, "refunds", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.Text != "alpha beta gamma" {
		t.Errorf("old corpus still visible: %+v", results)
	}

	if _, err := session.Ingest(ctx, "blank", "  \n\t ", 10); !errors.Is(err, models.ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
	if _, err := session.Query(ctx, "alpha", 1); !errors.Is(err, models.ErrNotReady) {
		t.Errorf("query after failed ingest: err = %v, want ErrNotReady", err)
	}
}

func TestIntegration_WatchReingests(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("original words only"), 0600); err != nil {
		t.Fatal(err)
	}
	session, err := newManager(t).Create()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := session.IngestFile(ctx, path, 5); err != nil {
		t.Fatal(err)
	}

	reingested := make(chan struct{}, 1)
	w, err := watcher.NewWatcher([]string{path}, func(changed string) {
		if _, err := session.IngestFile(ctx, changed, 5); err == nil {
			select {
			case reingested <- struct{}{}:
			default:
			}
		}
	}, watcher.WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("updated text"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reingested:
	case <-time.After(3 * time.Second):
		t.Fatal("document was not re-ingested")
	}
	results, err := session.Query(ctx, "updated text", 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Chunk.Text != "updated text" || results[0].Distance != 0 {
		t.Errorf("got %+v", results[0])
	}
}
