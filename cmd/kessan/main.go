// Package main is the Kessan CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/config"
	"github.com/hyperjump/kessan/internal/indexer"
	"github.com/hyperjump/kessan/internal/server"
	"github.com/hyperjump/kessan/internal/watcher"
	"github.com/hyperjump/kessan/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kessan/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml
// in the current directory wins if it exists, and a missing default file
// yields the built-in defaults. It returns the path actually loaded, or ""
// when defaults were used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := config.Default()
			if err := cfg.Validate(); err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newLogger builds the logger for a command. One-shot commands log warnings
// only unless debug is set, so their output stays readable.
func newLogger(cfg *config.Config, debug, oneShot bool) (*zap.Logger, error) {
	level := cfg.LogLevel
	if oneShot && !debug {
		level = "warn"
	}
	return utils.NewLeveledLogger(level, debug)
}

// openLocal loads config and initializes components in-process.
func openLocal(configPath string, debug bool, idxOpts ...indexer.IndexerOption) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debug = debug || cfg.Debug
	logger, err := newLogger(cfg, debug, true)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(cfg, logger, idxOpts...)
	if err != nil {
		_ = logger.Sync()
		fatalf("Failed to initialize: %v", err)
	}
	return cfg, logger, components
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "server":
		runServer(args)
	case "ingest", "index":
		runIngest(args)
	case "chunk":
		runChunk(args)
	case "import":
		runImport(args)
	case "export":
		runExport(args)
	case "search":
		runSearch(args)
	case "ask":
		runAsk(args)
	case "summarize":
		runSummarize(args)
	case "list":
		runList(args)
	case "delete":
		runDelete(args)
	case "status":
		runStatus(args)
	case "watch":
		runWatch(args)
	case "version", "--version", "-v":
		fmt.Printf("kessan version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := newLogger(cfg, debugMode, false)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.RecursiveOrDefault(),
		components.Indexer,
		watcher.WithFilter(components.Indexer.Matches),
		watcher.WithDebounce(cfg.Watch.Debounce),
		watcher.WithLogger(logger),
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Composer,
		components.Storage,
		cfg,
		server.WithLogger(logger),
		server.WithWatch(watchSvc, resolvedConfigPath),
		server.WithVectorIndex(components.VectorIndex),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	logger.Info("Shutting down...")
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front so flag.Parse sees them; the flag package stops at the
// first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printUsage() {
	fmt.Println(`kessan - Ask questions about financial filings

Usage:
  kessan server [flags]                 Start the HTTP server and inbox watcher
  kessan ingest [flags] <path>...       Ingest files or directories ("-" reads text from stdin)
  kessan chunk [flags] <file>           Chunk a file and print or write the chunk artifact
  kessan import [flags] <artifact.json> Index a pre-chunked artifact
  kessan export [flags] <document-id>   Write a document's chunks as an artifact
  kessan search [flags] <query>         Retrieve relevant chunks
  kessan ask [flags] <question>         Answer a question from the filings
  kessan summarize [flags] <document-id> Summarize a document
  kessan list [flags]                   List indexed documents
  kessan delete [flags] <document-id>   Delete a document
  kessan status [flags]                 Show storage and index status
  kessan watch <add|remove|list>        Manage watched inbox directories
  kessan version                        Show version
  kessan help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/kessan/config.yaml,
                     or ./config.yaml when present)
  --debug            Enable debug logging
  --output string    Output format: text or json (default: text)

Search and Ask Flags:
  --server string    Server URL; when set the command runs against a running server
  --limit int        Number of chunks to retrieve (default: 5)
  --mode string      hybrid, semantic or keyword (default: hybrid)
  --period string    Restrict to a reporting period such as Q3-2024
  --provider string  Ask/summarize only: gpt, gemini, claude, deepseek or grok

Chunk Flags:
  --strategy string  fixed, sentence, sliding or recursive
  --size int         Chunk size (words, or sentences for the sentence strategy)
  --overlap int      Overlap for sliding and recursive
  --max-units int    Hard ceiling; oversized chunks are re-split
  --unit string      Sentence budget unit: sentences or words
  --out string       Write the artifact to a file instead of stdout

Examples:
  kessan server
  kessan ingest ./filings
  kessan chunk --strategy sentence --size 5 Q3_2024_Report.pdf --out q3.json
  kessan import --title "Q3 2024 Report" q3.json
  kessan search --period Q3-2024 net revenue
  kessan ask --provider claude "How did operating margin change?"
  kessan ask --server http://localhost:8080 "What drove cash flow?"
  kessan summarize --provider gemini Q3_2024_Report
  kessan watch add ./inbox`)
}
