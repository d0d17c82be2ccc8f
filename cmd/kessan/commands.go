package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/artifact"
	"github.com/hyperjump/kessan/internal/chunker"
	"github.com/hyperjump/kessan/internal/cli"
	"github.com/hyperjump/kessan/internal/config"
	"github.com/hyperjump/kessan/internal/extract"
	"github.com/hyperjump/kessan/internal/fileid"
	"github.com/hyperjump/kessan/internal/indexer"
	"github.com/hyperjump/kessan/internal/models"
	"github.com/hyperjump/kessan/internal/storage"
)

const requestTimeout = 2 * time.Minute

func outputFlag(fs *flag.FlagSet) *string {
	return fs.String("output", "text", "output format: text or json")
}

func parseOutput(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	id := fs.String("id", "", "document id (stdin only)")
	title := fs.String("title", "", "document title (stdin only)")
	period := fs.String("period", "", "reporting period such as Q3-2024 (stdin only)")
	noProgress := fs.Bool("no-progress", false, "disable the progress bar")
	output := outputFlag(fs)
	_ = fs.Parse(args)
	format := parseOutput(*output)

	if fs.NArg() < 1 {
		fmt.Println("Usage: kessan ingest [flags] <file-or-directory>... | -")
		os.Exit(1)
	}

	var bar *progressbar.ProgressBar
	progress := indexer.WithProgress(func(path string) {
		if bar != nil {
			bar.Describe(filepath.Base(path))
			_ = bar.Add(1)
		}
	})
	_, logger, components := openLocal(*configPath, *debug, progress)
	defer components.Close()
	defer logger.Sync()
	ctx := context.Background()

	if fs.Arg(0) == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			fatalf("Failed to read stdin: %v", err)
		}
		doc, err := components.Indexer.IngestText(ctx, &models.DocumentInput{
			ID:      *id,
			Title:   *title,
			Period:  *period,
			Content: string(content),
		})
		if err != nil {
			fatalf("Ingest failed: %v", err)
		}
		writeDocument(doc, format)
		return
	}

	report := &indexer.DirectoryReport{}
	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			fatalf("Failed to stat path: %v", err)
		}
		if !info.IsDir() {
			res := indexer.FileResult{Path: path}
			doc, skipped, err := components.Indexer.IngestFile(ctx, path)
			switch {
			case err != nil:
				res.Error = err.Error()
				report.Failed++
			case skipped:
				res.Skipped = true
				report.Skipped++
			default:
				res.Document = doc
				report.Indexed++
			}
			report.Files = append(report.Files, res)
			continue
		}

		files, err := components.Indexer.ListFiles(path)
		if err != nil {
			fatalf("Failed to list %s: %v", path, err)
		}
		if !*noProgress && format == cli.OutputText && len(files) > 0 {
			bar = progressbar.NewOptions(len(files),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		dirReport, err := components.Indexer.IngestDirectory(ctx, path)
		if bar != nil {
			_ = bar.Finish()
			bar = nil
		}
		if err != nil {
			fatalf("Ingesting directory failed: %v", err)
		}
		report.Indexed += dirReport.Indexed
		report.Skipped += dirReport.Skipped
		report.Failed += dirReport.Failed
		report.Files = append(report.Files, dirReport.Files...)
	}

	if format == cli.OutputJSON {
		if err := cli.WriteJSON(os.Stdout, report); err != nil {
			fatalf("Output failed: %v", err)
		}
	} else {
		for _, f := range report.Files {
			switch {
			case f.Error != "":
				fmt.Printf("FAILED   %s: %s\n", f.Path, f.Error)
			case f.Skipped:
				fmt.Printf("skipped  %s (unchanged)\n", f.Path)
			default:
				fmt.Printf("indexed  %s -> %s (%d chunks)\n", f.Path, f.Document.ID, f.Document.ChunkCount)
			}
		}
		fmt.Printf("\n%d indexed, %d skipped, %d failed\n", report.Indexed, report.Skipped, report.Failed)
	}
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func writeDocument(doc *models.Document, format cli.OutputFormat) {
	if format == cli.OutputJSON {
		if err := cli.WriteJSON(os.Stdout, doc); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	fmt.Printf("Document indexed: %s (%d chunks, strategy %s", doc.ID, doc.ChunkCount, doc.Strategy)
	if doc.Period != "" {
		fmt.Printf(", period %s", doc.Period)
	}
	fmt.Println(")")
}

// runChunk chunks a file without touching storage, so the artifact can be
// reviewed or edited before import.
func runChunk(args []string) {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	strategy := fs.String("strategy", "", "fixed, sentence, sliding or recursive (default from config)")
	size := fs.Int("size", 0, "chunk size")
	overlap := fs.Int("overlap", 0, "overlap for sliding and recursive")
	maxUnits := fs.Int("max-units", 0, "hard ceiling per chunk")
	unit := fs.String("unit", "", "sentence budget unit: sentences or words")
	id := fs.String("id", "", "document id used in chunk ids (default: file name)")
	out := fs.String("out", "", "write the artifact to this file")
	output := outputFlag(fs)
	_ = fs.Parse(searchArgsReorder(args))
	format := parseOutput(*output)

	if fs.NArg() != 1 {
		fmt.Println("Usage: kessan chunk [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	cfg = cfg.WithChunking(config.ChunkingOverrides{
		Strategy:     *strategy,
		Size:         *size,
		Overlap:      *overlap,
		MaxUnits:     *maxUnits,
		SentenceUnit: *unit,
	})
	opts, err := cfg.ChunkerOptions()
	if err != nil {
		fatalf("Invalid chunking options: %v", err)
	}
	c, err := chunker.New(opts)
	if err != nil {
		fatalf("Invalid chunking options: %v", err)
	}

	text, err := extract.NewExtractor().Extract(path)
	if err != nil {
		fatalf("Extraction failed: %v", err)
	}
	docID := *id
	if docID == "" {
		docID = fileid.FileDocID(path)
	}
	chunks, err := c.Chunk(docID, chunker.Normalize(text), nil)
	if err != nil {
		fatalf("Chunking failed: %v", err)
	}
	art := artifact.FromChunks(chunks)

	if *out != "" {
		if err := artifact.WriteFile(*out, art); err != nil {
			fatalf("Write failed: %v", err)
		}
		fmt.Printf("Wrote %d chunks (%s) to %s\n", len(art.Chunks), opts.Strategy, *out)
		return
	}
	if err := cli.WriteChunks(os.Stdout, art, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	id := fs.String("id", "", "document id (default: artifact file name)")
	title := fs.String("title", "", "document title")
	source := fs.String("source", "", "document source")
	period := fs.String("period", "", "reporting period such as Q3-2024")
	output := outputFlag(fs)
	_ = fs.Parse(searchArgsReorder(args))
	format := parseOutput(*output)

	if fs.NArg() != 1 {
		fmt.Println("Usage: kessan import [flags] <artifact.json>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	art, err := artifact.ReadFile(path)
	if err != nil {
		fatalf("Failed to read artifact: %v", err)
	}
	docID := *id
	if docID == "" {
		docID = fileid.FileDocID(path)
	}
	src := *source
	if src == "" {
		src = filepath.Base(path)
	}

	_, logger, components := openLocal(*configPath, *debug)
	defer components.Close()
	defer logger.Sync()

	doc, err := components.Indexer.ImportArtifact(context.Background(), indexer.ArtifactInput{
		DocumentID: docID,
		Title:      *title,
		Source:     src,
		Period:     *period,
	}, art)
	if err != nil {
		fatalf("Import failed: %v", err)
	}
	writeDocument(doc, format)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	out := fs.String("out", "", "write the artifact to this file instead of stdout")
	_ = fs.Parse(searchArgsReorder(args))

	if fs.NArg() != 1 {
		fmt.Println("Usage: kessan export [flags] <document-id>")
		os.Exit(1)
	}
	_, logger, components := openLocal(*configPath, false)
	defer components.Close()
	defer logger.Sync()

	art, err := components.Indexer.ExportArtifact(context.Background(), fs.Arg(0))
	if err != nil {
		fatalf("Export failed: %v", err)
	}
	if *out == "" {
		if err := artifact.Encode(os.Stdout, art); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	if err := artifact.WriteFile(*out, art); err != nil {
		fatalf("Write failed: %v", err)
	}
	fmt.Printf("Wrote %d chunks to %s\n", len(art.Chunks), *out)
}

// queryFlags are shared by search and ask.
type queryFlags struct {
	configPath *string
	serverURL  *string
	limit      *int
	mode       *string
	period     *string
	output     *string
}

func addQueryFlags(fs *flag.FlagSet) queryFlags {
	return queryFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		serverURL:  fs.String("server", "", "server URL; empty runs in-process"),
		limit:      fs.Int("limit", models.DefaultLimit, "number of chunks to retrieve"),
		mode:       fs.String("mode", string(models.ModeHybrid), "hybrid, semantic or keyword"),
		period:     fs.String("period", "", "restrict to a reporting period such as Q3-2024"),
		output:     outputFlag(fs),
	}
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	qf := addQueryFlags(fs)
	_ = fs.Parse(searchArgsReorder(args))
	format := parseOutput(*qf.output)

	query := &models.SearchQuery{
		Query:  buildQuery(fs.Args()),
		Limit:  *qf.limit,
		Mode:   models.SearchMode(*qf.mode),
		Filter: models.PeriodFilter(*qf.period),
	}
	if query.Query == "" {
		fmt.Println("Usage: kessan search [flags] <query>")
		os.Exit(1)
	}

	var response *models.SearchResponse
	if *qf.serverURL != "" {
		response = &models.SearchResponse{}
		if err := newAPIClient(*qf.serverURL, requestTimeout).post("/api/v1/search", query, response); err != nil {
			fatalf("Search failed: %v", err)
		}
	} else {
		_, logger, components := openLocal(*qf.configPath, false)
		defer components.Close()
		defer logger.Sync()
		var err error
		response, err = components.Engine.Search(context.Background(), query)
		if err != nil {
			fatalf("Search failed: %v", err)
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	qf := addQueryFlags(fs)
	provider := fs.String("provider", "", "gpt, gemini, claude, deepseek or grok (default from config)")
	_ = fs.Parse(searchArgsReorder(args))
	format := parseOutput(*qf.output)

	req := models.AskRequest{
		Question: buildQuery(fs.Args()),
		Provider: *provider,
		Period:   *qf.period,
		Limit:    *qf.limit,
		Mode:     models.SearchMode(*qf.mode),
	}
	if req.Question == "" {
		fmt.Println("Usage: kessan ask [flags] <question>")
		os.Exit(1)
	}

	var answer *models.Answer
	if *qf.serverURL != "" {
		answer = &models.Answer{}
		if err := newAPIClient(*qf.serverURL, requestTimeout).post("/api/v1/ask", req, answer); err != nil {
			fatalf("Ask failed: %v", err)
		}
	} else {
		_, logger, components := openLocal(*qf.configPath, false)
		defer components.Close()
		defer logger.Sync()
		var err error
		answer, err = components.Composer.Ask(context.Background(), req)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runSummarize(args []string) {
	fs := flag.NewFlagSet("summarize", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty runs in-process")
	provider := fs.String("provider", "", "gpt, gemini, claude, deepseek or grok (default from config)")
	file := fs.String("file", "", "summarize this file instead of a stored document")
	output := outputFlag(fs)
	_ = fs.Parse(searchArgsReorder(args))
	format := parseOutput(*output)

	req := models.SummarizeRequest{Provider: *provider}
	switch {
	case *file != "":
		text, err := extract.NewExtractor().Extract(*file)
		if err != nil {
			fatalf("Extraction failed: %v", err)
		}
		req.Text = text
	case fs.NArg() == 1:
		req.DocumentID = fs.Arg(0)
	default:
		fmt.Println("Usage: kessan summarize [flags] <document-id> | --file <path>")
		os.Exit(1)
	}

	var summary *models.Summary
	if *serverURL != "" {
		summary = &models.Summary{}
		if err := newAPIClient(*serverURL, requestTimeout).post("/api/v1/summarize", req, summary); err != nil {
			fatalf("Summarize failed: %v", err)
		}
	} else {
		_, logger, components := openLocal(*configPath, false)
		defer components.Close()
		defer logger.Sync()
		var err error
		summary, err = components.Composer.Summarize(context.Background(), req)
		if err != nil {
			fatalf("Summarize failed: %v", err)
		}
	}
	if err := cli.WriteSummary(os.Stdout, summary, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	offset := fs.Int("offset", 0, "skip this many documents")
	limit := fs.Int("limit", 100, "maximum documents to list")
	output := outputFlag(fs)
	_ = fs.Parse(args)
	format := parseOutput(*output)

	_, logger, components := openLocal(*configPath, false)
	defer components.Close()
	defer logger.Sync()

	docs, err := components.Storage.ListDocuments(context.Background(), *offset, *limit)
	if err != nil {
		fatalf("List failed: %v", err)
	}
	if err := cli.WriteDocuments(os.Stdout, docs, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runDelete(args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Println("Usage: kessan delete [flags] <document-id>...")
		os.Exit(1)
	}
	_, logger, components := openLocal(*configPath, false)
	defer components.Close()
	defer logger.Sync()

	failed := false
	for _, docID := range fs.Args() {
		if err := components.Indexer.DeleteDocument(context.Background(), docID); err != nil {
			fmt.Fprintf(os.Stderr, "Deletion of %s failed: %v\n", docID, err)
			failed = true
			continue
		}
		fmt.Printf("Document deleted: %s\n", docID)
	}
	if failed {
		os.Exit(1)
	}
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Documents       int64          `json:"documents"`
	Chunks          int64          `json:"chunks"`
	VectorIndexSize int            `json:"vector_index_size"`
	DiskUsageBytes  *int64         `json:"disk_usage_bytes,omitempty"`
	Config          map[string]any `json:"config,omitempty"`
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty reads local storage")
	output := outputFlag(fs)
	_ = fs.Parse(args)
	format := parseOutput(*output)

	var status statusResponse
	if *serverURL != "" {
		if err := newAPIClient(*serverURL, 10*time.Second).get("/api/v1/status", &status); err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, logger, components := openLocal(*configPath, false)
		defer components.Close()
		defer logger.Sync()
		status = localStatus(cfg, components, logger)
	}

	if format == cli.OutputJSON {
		if err := cli.WriteJSON(os.Stdout, status); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	fmt.Printf("documents:          %d\n", status.Documents)
	fmt.Printf("chunks:             %d\n", status.Chunks)
	fmt.Printf("vector_index_size:  %d\n", status.VectorIndexSize)
	if status.DiskUsageBytes != nil {
		fmt.Printf("disk_usage:         %s\n", cli.FormatBytes(*status.DiskUsageBytes))
	}
	if len(status.Config) > 0 {
		fmt.Println()
		fmt.Println("# configuration")
		for _, key := range []string{
			"chunk_strategy", "chunk_size", "chunk_overlap", "chunk_max_units",
			"embedding_provider", "embedding_dimensions",
			"semantic_weight", "keyword_weight", "default_provider",
			"vector_index_type", "database_path",
		} {
			if v, ok := status.Config[key]; ok {
				fmt.Printf("%-20s%v\n", key+":", v)
			}
		}
	}
}

func localStatus(cfg *config.Config, c *Components, logger *zap.Logger) statusResponse {
	ctx := context.Background()
	docs, err := c.Storage.CountDocuments(ctx)
	if err != nil {
		fatalf("Count documents failed: %v", err)
	}
	chunks, err := c.Storage.CountChunks(ctx)
	if err != nil {
		fatalf("Count chunks failed: %v", err)
	}
	status := statusResponse{
		Documents:       docs,
		Chunks:          chunks,
		VectorIndexSize: c.VectorIndex.Size(),
		Config: map[string]any{
			"chunk_strategy":       cfg.Chunking.Strategy,
			"chunk_size":           cfg.Chunking.Size,
			"chunk_overlap":        cfg.Chunking.OverlapOrDefault(),
			"chunk_max_units":      cfg.Chunking.MaxUnits,
			"embedding_provider":   cfg.Embedding.Provider,
			"embedding_dimensions": cfg.Embedding.Dimensions,
			"semantic_weight":      cfg.Search.SemanticWeight,
			"keyword_weight":       cfg.Search.KeywordWeight,
			"default_provider":     cfg.LLM.DefaultProvider,
			"vector_index_type":    cfg.Storage.VectorIndexType,
			"database_path":        cfg.Storage.DatabasePath,
		},
	}
	diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath, cfg.Storage.VectorIndexPath)
	if err != nil {
		logger.Warn("disk usage unavailable", zap.Error(err))
	} else {
		status.DiskUsageBytes = &diskBytes
	}
	return status
}

func runWatch(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: kessan watch <add|remove|list> [flags] [path]")
		fmt.Println("  kessan watch add <path>     Add an inbox directory")
		fmt.Println("  kessan watch remove <path>  Stop watching a directory")
		fmt.Println("  kessan watch list           List watched directories")
		os.Exit(1)
	}
	sub := args[0]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "add: do not ingest files already in the directory")
	_ = fs.Parse(searchArgsReorder(args[1:]))
	client := newAPIClient(*serverURL, 30*time.Second)

	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fmt.Printf("Usage: kessan watch %s <path>\n", sub)
			os.Exit(1)
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			fatalf("Invalid path: %v", err)
		}
		if sub == "add" {
			body := map[string]any{"path": path, "sync": !*noSync}
			if err := client.post("/api/v1/watch/directories", body, nil); err != nil {
				fatalf("Add failed: %v", err)
			}
			fmt.Printf("Added: %s\n", path)
			return
		}
		if err := client.delete("/api/v1/watch/directories?path="+url.QueryEscape(path), nil); err != nil {
			fatalf("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := client.get("/api/v1/watch/directories", &out); err != nil {
			fatalf("List failed: %v", err)
		}
		if len(out.Directories) == 0 {
			fmt.Println("No watched directories")
			return
		}
		fmt.Println(strings.Join(out.Directories, "\n"))
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}
