package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/passage/internal/cli"
	"github.com/hyperjump/passage/internal/config"
	"github.com/hyperjump/passage/internal/models"
	"github.com/hyperjump/passage/internal/vector"
)

func newTestFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	addCommonFlags(fs)
	fs.String("format", "text", "")
	fs.Bool("watch", false, "")
	return fs
}

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"doc.pdf", "what is it", "-top-k", "5"},
			expected: []string{"-top-k", "5", "--", "doc.pdf", "what is it"},
		},
		{
			name:     "flags between file and question",
			args:     []string{"doc.pdf", "-top-k", "5", "what", "is", "it"},
			expected: []string{"-top-k", "5", "--", "doc.pdf", "what", "is", "it"},
		},
		{
			name:     "flags first keep their order",
			args:     []string{"-top-k", "5", "-format=json", "doc.pdf", "what"},
			expected: []string{"-top-k", "5", "-format=json", "--", "doc.pdf", "what"},
		},
		{
			name:     "bool flag takes no value",
			args:     []string{"doc.pdf", "-watch", "-debug"},
			expected: []string{"-watch", "-debug", "--", "doc.pdf"},
		},
		{
			name:     "unknown dash words stay in the question",
			args:     []string{"doc.pdf", "what", "is", "-1", "squared"},
			expected: []string{"--", "doc.pdf", "what", "is", "-1", "squared"},
		},
		{
			name:     "explicit terminator",
			args:     []string{"doc.pdf", "--", "-top-k", "means"},
			expected: []string{"--", "doc.pdf", "-top-k", "means"},
		},
		{
			name:     "empty args",
			args:     []string{},
			expected: []string{"--"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(newTestFlagSet(), tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSearchArgsReorder_Parse(t *testing.T) {
	tests := []struct {
		args     []string
		file     string
		question string
		topK     string
	}{
		{[]string{"doc.pdf", "-top-k", "5", "what", "is", "it"}, "doc.pdf", "what is it", "5"},
		{[]string{"doc.pdf", "what", "is", "-1", "squared"}, "doc.pdf", "what is -1 squared", "0"},
		{[]string{"--top-k=2", "notes.md", "deploy", "steps"}, "notes.md", "deploy steps", "2"},
	}
	for _, tt := range tests {
		fs := newTestFlagSet()
		if err := fs.Parse(searchArgsReorder(fs, tt.args)); err != nil {
			t.Fatalf("Parse(%v): %v", tt.args, err)
		}
		if fs.Arg(0) != tt.file {
			t.Errorf("%v: file = %q, want %q", tt.args, fs.Arg(0), tt.file)
		}
		if got := buildQuestion(fs.Args()[1:]); got != tt.question {
			t.Errorf("%v: question = %q, want %q", tt.args, got, tt.question)
		}
		if got := fs.Lookup("top-k").Value.String(); got != tt.topK {
			t.Errorf("%v: top-k = %s, want %s", tt.args, got, tt.topK)
		}
	}
}

func TestCheckIndexType(t *testing.T) {
	for _, typ := range []string{"", "flat", "memory"} {
		if err := checkIndexType(typ); err != nil {
			t.Errorf("checkIndexType(%q) = %v, want nil", typ, err)
		}
	}
	err := checkIndexType("faiss")
	if vector.IsFAISSAvailable() {
		if err != nil {
			t.Errorf("checkIndexType(faiss) with FAISS built in = %v", err)
		}
		return
	}
	if !errors.Is(err, models.ErrInvalidArgument) || !strings.Contains(err.Error(), "-tags=faiss") {
		t.Errorf("checkIndexType(faiss) = %v, want ErrInvalidArgument naming the build tag", err)
	}
}

func TestInitializeComponents_rejectsUnavailableFAISS(t *testing.T) {
	if vector.IsFAISSAvailable() {
		t.Skip("FAISS is compiled in")
	}
	cfg := config.Default()
	cfg.Vector.IndexType = "faiss"
	if _, err := initializeComponents(cfg, zap.NewNop()); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("initializeComponents() error = %v, want ErrInvalidArgument", err)
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"refunds"}, "refunds"},
		{"multiple words", []string{"refund", "policy"}, "refund policy"},
		{"quoted phrase", []string{"refund policy"}, "refund policy"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuestion(tt.args); got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	if err := applyOverrides(cfg, 0, 0); err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieval.ChunkSize != 300 || cfg.Retrieval.TopK != 3 {
		t.Errorf("zero overrides changed config: %+v", cfg.Retrieval)
	}
	if err := applyOverrides(cfg, 50, 7); err != nil {
		t.Fatal(err)
	}
	if cfg.Retrieval.ChunkSize != 50 || cfg.Retrieval.TopK != 7 {
		t.Errorf("overrides not applied: %+v", cfg.Retrieval)
	}
	if err := applyOverrides(cfg, -1, 0); err == nil {
		t.Error("expected error for negative chunk size")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
embedding:
  provider: mock
retrieval:
  chunk_size: 120
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug || cfg.Retrieval.ChunkSize != 120 {
		t.Errorf("cwd config not used: debug=%v chunk_size=%d", cfg.Debug, cfg.Retrieval.ChunkSize)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "passage.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestAskLoop(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Provider = config.ProviderMock
	cfg.Embedding.Dimensions = 16
	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	session, err := components.Sessions.Create()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := session.Ingest(ctx, "fox", "the quick brown fox jumps over the lazy dog", 2); err != nil {
		t.Fatal(err)
	}

	in := strings.NewReader("\nthe quick\nquit\nnever read\n")
	var out strings.Builder
	if err := askLoop(ctx, session, in, &out, 2, 50, cli.OutputText); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, cli.EmptyQuestionWarning) {
		t.Errorf("missing blank question warning:\n%s", got)
	}
	if !strings.Contains(got, "Result 1 (distance: 0.0000)\nthe quick\n---") {
		t.Errorf("exact chunk should be the first result at distance 0:\n%s", got)
	}
	if !strings.Contains(got, "Result 2 (distance:") || strings.Contains(got, "Result 3") {
		t.Errorf("expected exactly two results:\n%s", got)
	}
}

func TestAskLoop_notReady(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Provider = config.ProviderMock
	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()
	session, err := components.Sessions.Create()
	if err != nil {
		t.Fatal(err)
	}

	var out strings.Builder
	if err := askLoop(context.Background(), session, strings.NewReader("anything\n"), &out, 3, 50, cli.OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No document is loaded yet.") {
		t.Errorf("got %q", out.String())
	}
}
