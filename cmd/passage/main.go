// Package main is the passage CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/passage/internal/cli"
	"github.com/hyperjump/passage/internal/config"
	"github.com/hyperjump/passage/internal/embedding"
	"github.com/hyperjump/passage/internal/extract"
	"github.com/hyperjump/passage/internal/indexer"
	"github.com/hyperjump/passage/internal/models"
	"github.com/hyperjump/passage/internal/retrieval"
	"github.com/hyperjump/passage/internal/search"
	"github.com/hyperjump/passage/internal/server"
	"github.com/hyperjump/passage/internal/vector"
	"github.com/hyperjump/passage/internal/watcher"
	"github.com/hyperjump/passage/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/passage/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, and a missing default file means built-in defaults.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys for remote embedding providers may live in a local .env file.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "ask":
		runAsk()
	case "version", "--version", "-v":
		fmt.Printf("passage version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags are shared by every command that loads a document.
type commonFlags struct {
	configPath *string
	debug      *bool
	chunkSize  *int
	topK       *int
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		chunkSize:  fs.Int("chunk-size", 0, "words per chunk (default from config, or 300)"),
		topK:       fs.Int("top-k", 0, "passages per question (default from config, or 3)"),
	}
}

// applyOverrides copies non-zero flag values over the loaded config.
func applyOverrides(cfg *config.Config, chunkSize, topK int) error {
	if chunkSize != 0 {
		cfg.Retrieval.ChunkSize = chunkSize
	}
	if topK != 0 {
		cfg.Retrieval.TopK = topK
	}
	return cfg.Validate()
}

// setup loads config, applies flag overrides and builds a logger. Interactive commands get
// a quiet logger so log lines do not interleave with results.
func setup(flags commonFlags, quiet bool) (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(*flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyOverrides(cfg, *flags.chunkSize, *flags.topK); err != nil {
		return nil, nil, err
	}
	debugMode := cfg.Debug || *flags.debug
	var logger *zap.Logger
	if quiet {
		logger, err = utils.NewQuietLogger(debugMode)
	} else {
		logger, err = utils.NewLogger(debugMode)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("provider", cfg.Embedding.Provider),
		zap.Int("chunk_size", cfg.Retrieval.ChunkSize),
		zap.Int("top_k", cfg.Retrieval.TopK),
	)
	return cfg, logger, nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(os.Args[2:])

	cfg, logger, err := setup(flags, false)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(components.Sessions, components.Gateway, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: passage search [flags] <file> <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all arguments after the file joined by spaces.\n\n")
	fs.PrintDefaults()
}

// buildQuestion joins the remaining arguments into one question.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves the flags defined on fs to the front, keeping positional arguments
// in order after a "--" terminator. Flags may then follow the file or sit inside the
// question, and question words that look like flags ("-1") stay part of the question.
func searchArgsReorder(fs *flag.FlagSet, args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if a == "-h" || a == "-help" || a == "--help" {
			flags = append(flags, a)
			continue
		}
		f := lookupFlag(fs, a)
		if f == nil {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		if !strings.Contains(a, "=") && !isBoolFlag(f) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, flags...)
	out = append(out, "--")
	return append(out, positional...)
}

// lookupFlag returns the flag a names ("-top-k", "--top-k", "-top-k=5"), or nil.
func lookupFlag(fs *flag.FlagSet, a string) *flag.Flag {
	if len(a) < 2 || a[0] != '-' {
		return nil
	}
	name := strings.TrimLeft(a, "-")
	if eq := strings.IndexByte(name, '='); eq >= 0 {
		name = name[:eq]
	}
	if name == "" {
		return nil
	}
	return fs.Lookup(name)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	flags := addCommonFlags(fs)
	format := fs.String("format", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(fs, os.Args[2:]))

	if fs.NArg() < 1 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	question := buildQuestion(fs.Args()[1:])
	if question == "" {
		fmt.Println(cli.EmptyQuestionWarning)
		os.Exit(1)
	}

	cfg, logger, err := setup(flags, true)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Printf("Failed to initialize components: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx := context.Background()
	session, err := components.Sessions.Create()
	if err != nil {
		fmt.Println(cli.Describe(err))
		os.Exit(1)
	}
	corpus, err := session.IngestFile(ctx, fs.Arg(0), cfg.Retrieval.ChunkSize)
	if err != nil {
		fmt.Println(cli.Describe(err))
		os.Exit(1)
	}
	// Keep stdout parseable in JSON mode.
	summary := io.Writer(os.Stdout)
	if outFormat == cli.OutputJSON {
		summary = os.Stderr
	}
	cli.WriteIngestSummary(summary, corpus.Title, corpus.Size())

	query := &models.SearchQuery{Question: question, TopK: cfg.Retrieval.TopK}
	response, err := session.Search(ctx, query, cfg.Retrieval.TopK, cfg.Retrieval.MaxTopK)
	if err != nil {
		fmt.Println(cli.Describe(err))
		os.Exit(1)
	}
	if outFormat == cli.OutputText {
		fmt.Println()
	}
	if err := cli.WriteSearchResults(os.Stdout, response, outFormat); err != nil {
		fmt.Printf("Failed to write results: %v\n", err)
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	flags := addCommonFlags(fs)
	format := fs.String("format", "text", "output format: text or json")
	watch := fs.Bool("watch", false, "re-ingest the document when it changes on disk")
	_ = fs.Parse(searchArgsReorder(fs, os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Println("Usage: passage ask [flags] <file>")
		os.Exit(1)
	}
	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	cfg, logger, err := setup(flags, true)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Printf("Failed to initialize components: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := components.Sessions.Create()
	if err != nil {
		fmt.Println(cli.Describe(err))
		os.Exit(1)
	}
	path := fs.Arg(0)
	corpus, err := session.IngestFile(ctx, path, cfg.Retrieval.ChunkSize)
	if err != nil {
		fmt.Println(cli.Describe(err))
		os.Exit(1)
	}
	cli.WriteIngestSummary(os.Stdout, corpus.Title, corpus.Size())

	if *watch {
		w, err := watchDocument(ctx, session, path, cfg, logger)
		if err != nil {
			fmt.Printf("Failed to start watcher: %v\n", err)
			os.Exit(1)
		}
		defer w.Stop()
	}

	fmt.Println("Ask a question about the document (empty line to skip, \"quit\" to exit).")
	if err := askLoop(ctx, session, os.Stdin, os.Stdout, cfg.Retrieval.TopK, cfg.Retrieval.MaxTopK, outFormat); err != nil {
		fmt.Printf("Failed to read input: %v\n", err)
		os.Exit(1)
	}
}

// watchDocument re-ingests path into session whenever it is saved. A removed document keeps
// the last corpus so questions still work until the file comes back.
func watchDocument(ctx context.Context, session *retrieval.Session, path string, cfg *config.Config, logger *zap.Logger) (*watcher.Watcher, error) {
	onChange := func(changed string) {
		corpus, err := session.IngestFile(ctx, changed, cfg.Retrieval.ChunkSize)
		if err != nil {
			if !errors.Is(err, models.ErrSuperseded) {
				logger.Warn("re-ingest failed", zap.String("path", changed), zap.Error(err))
				fmt.Printf("\n%s\n> ", cli.Describe(err))
			}
			return
		}
		fmt.Print("\nDocument changed. ")
		cli.WriteIngestSummary(os.Stdout, corpus.Title, corpus.Size())
		fmt.Print("> ")
	}
	onRemove := func(removed string) {
		logger.Warn("watched document removed, keeping last corpus", zap.String("path", removed))
	}
	w, err := watcher.NewWatcher([]string{path}, onChange,
		watcher.WithDebounce(cfg.Watch.Debounce),
		watcher.WithOnRemove(onRemove),
		watcher.WithLogger(logger.Named("watcher")),
	)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	for _, f := range w.Files() {
		fmt.Printf("Watching %s for changes.\n", f)
	}
	return w, nil
}

// askLoop answers one question per input line until EOF, "quit" or ctx is done.
// Query errors are reported and the loop continues.
func askLoop(ctx context.Context, session *retrieval.Session, in io.Reader, out io.Writer, topK, maxTopK int, format cli.SearchOutputFormat) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			fmt.Fprintln(out, cli.EmptyQuestionWarning)
			continue
		case "quit", "exit":
			return nil
		}
		response, err := session.Search(ctx, &models.SearchQuery{Question: question, TopK: topK}, topK, maxTopK)
		if err != nil {
			fmt.Fprintln(out, cli.Describe(err))
			continue
		}
		if err := cli.WriteSearchResults(out, response, format); err != nil {
			return err
		}
	}
}

// Components holds the long-lived objects shared by every command.
type Components struct {
	Gateway  *embedding.Gateway
	Indexer  *indexer.Indexer
	Engine   *search.Engine
	Sessions *retrieval.Manager
}

// Close releases all sessions and the embedding gateway.
func (c *Components) Close() {
	if c.Sessions != nil {
		_ = c.Sessions.Close()
	}
	if c.Gateway != nil {
		_ = c.Gateway.Close()
	}
}

// checkIndexType rejects an index type this binary cannot build, before any
// document is embedded.
func checkIndexType(indexType string) error {
	if vector.IndexType(indexType) == vector.IndexTypeFAISS && !vector.IsFAISSAvailable() {
		return fmt.Errorf("%w: vector.index_type is faiss but this binary was built without FAISS support (rebuild with -tags=faiss or use flat)",
			models.ErrInvalidArgument)
	}
	return nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := checkIndexType(cfg.Vector.IndexType); err != nil {
		return nil, err
	}
	gateway, err := embedding.NewGatewayFromConfig(&cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding gateway: %w", err)
	}
	idx := indexer.NewIndexer(gateway,
		indexer.WithIndexType(cfg.Vector.IndexType),
		indexer.WithExtractor(extract.NewExtractor()),
		indexer.WithLogger(logger.Named("indexer")),
	)
	engine := search.NewEngine(gateway, search.WithLogger(logger.Named("search")))
	sessions := retrieval.NewManager(idx, engine,
		retrieval.WithLogger(logger.Named("retrieval")),
		retrieval.WithMaxSessions(cfg.Retrieval.MaxSessions),
	)
	return &Components{
		Gateway:  gateway,
		Indexer:  idx,
		Engine:   engine,
		Sessions: sessions,
	}, nil
}

func printUsage() {
	fmt.Println(`passage - Ask questions of a document and get back its most relevant passages

Usage:
  passage search [flags] <file> <question>   Answer one question about a document
  passage ask [flags] <file>                 Ask questions interactively
  passage server [flags]                     Start the HTTP server
  passage version                            Show version
  passage help                               Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/passage/config.yaml)
  --debug            Enable debug logging
  --chunk-size int   Words per chunk (default from config, or 300)
  --top-k int        Passages per question (default from config, or 3)

Search and Ask Flags:
  --format string    Output format: text or json (default: text)

Ask Flags:
  --watch            Re-ingest the document when it changes on disk

Examples:
  passage search report.pdf "what were the main findings"
  passage search --top-k 5 --format json notes.md deployment steps
  passage ask --watch handbook.docx
  passage server --config ./config.yaml`)
}
