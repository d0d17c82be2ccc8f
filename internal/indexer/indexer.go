// Package indexer drives ingestion: it chunks filings, embeds the chunks and
// writes them to storage and both retrieval indexes.
package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/chunker"
	"github.com/hyperjump/kessan/internal/embedding"
	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/extract"
	"github.com/hyperjump/kessan/internal/keyword"
	"github.com/hyperjump/kessan/internal/models"
	"github.com/hyperjump/kessan/internal/ranking"
	"github.com/hyperjump/kessan/internal/storage"
	"github.com/hyperjump/kessan/internal/vector"
)

// Config tunes ingestion.
type Config struct {
	EmbedBatchSize int
	EmbedWorkers   int
	// Include and Exclude are doublestar globs relative to the ingested
	// directory. An empty Include takes every supported file.
	Include []string
	Exclude []string
}

// Indexer indexes filings into storage, keyword index, and vector index.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	chunker      *chunker.Chunker
	extractor    *extract.Extractor
	config       Config
	logger       *zap.Logger
	progress     func(path string)
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithProgress registers a callback run after each file of a directory
// ingest, whatever its outcome.
func WithProgress(fn func(path string)) IndexerOption {
	return func(idx *Indexer) { idx.progress = fn }
}

// NewIndexer creates an indexer with the given dependencies.
// extractor may be nil, in which case IngestFile only accepts plain text.
func NewIndexer(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	chunker *chunker.Chunker,
	extractor *extract.Extractor,
	cfg Config,
	opts ...IndexerOption,
) *Indexer {
	if cfg.EmbedWorkers < 1 {
		cfg.EmbedWorkers = 1
	}
	idx := &Indexer{
		storage:      storage,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		chunker:      chunker,
		extractor:    extractor,
		config:       cfg,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Chunker returns the configured chunker.
func (idx *Indexer) Chunker() *chunker.Chunker {
	return idx.chunker
}

// IngestText chunks, embeds and indexes already-extracted text. A document
// with the same id is replaced.
func (idx *Indexer) IngestText(ctx context.Context, input *models.DocumentInput) (*models.Document, error) {
	text := chunker.Normalize(input.Content)
	if text == "" {
		return nil, errs.Validation("document content is empty")
	}
	doc := newDocument(input)
	doc.Strategy = idx.chunker.Options().Strategy.String()

	chunks, err := idx.chunker.Chunk(doc.ID, text, chunkMetadata(doc))
	if err != nil {
		return nil, err
	}
	if err := idx.store(ctx, doc, chunks); err != nil {
		return nil, err
	}
	return doc, nil
}

// ArtifactInput names the document an artifact is imported into.
type ArtifactInput struct {
	DocumentID string
	Title      string
	Source     string
	Period     string
}

// ImportArtifact indexes pre-chunked content. Chunk ids are namespaced by
// the document ("chunk_0" in NVDA_FY2024 is stored as NVDA_FY2024_chunk_0),
// ids that already carry the prefix are kept. A chunk above the chunker's
// hard ceiling is re-split and its pieces get "_{n}" suffixes. Missing ids
// become {document}_chunk_{i}.
func (idx *Indexer) ImportArtifact(ctx context.Context, in ArtifactInput, art *models.ChunkArtifact) (*models.Document, error) {
	if in.DocumentID == "" {
		return nil, errs.Validation("document id is required")
	}
	if art == nil || len(art.Chunks) == 0 {
		return nil, errs.Validation("chunk artifact is empty")
	}
	doc := newDocument(&models.DocumentInput{ID: in.DocumentID, Title: in.Title, Source: in.Source, Period: in.Period})
	doc.Strategy = "artifact"
	meta := chunkMetadata(doc)
	ceiling := idx.chunker.Options().MaxUnits

	var chunks []models.Chunk
	seen := make(map[string]bool, len(art.Chunks))
	for i, ac := range art.Chunks {
		id := models.ChunkID(doc.ID, i)
		if ac.ID != "" {
			id = namespacedID(doc.ID, ac.ID)
		}
		if seen[id] {
			return nil, errs.Validation("duplicate chunk id %q in document %s", id, doc.ID)
		}
		seen[id] = true
		pieces := []string{strings.TrimSpace(ac.Content)}
		if ceiling > 0 {
			var err error
			if pieces, err = chunker.ValidateAndResplit(pieces, ceiling); err != nil {
				return nil, err
			}
		}
		for j, p := range pieces {
			pid := id
			if len(pieces) > 1 {
				pid = id + "_" + strconv.Itoa(j)
			}
			chunks = append(chunks, models.Chunk{
				ID:         pid,
				DocumentID: doc.ID,
				Index:      len(chunks),
				Content:    p,
				TokenCount: chunker.CountWords(p),
				Metadata:   copyMeta(meta),
			})
		}
	}
	if err := idx.store(ctx, doc, chunks); err != nil {
		return nil, err
	}
	return doc, nil
}

func namespacedID(docID, id string) string {
	if strings.HasPrefix(id, docID+"_") {
		return id
	}
	return docID + "_" + id
}

// ExportArtifact returns the stored chunks of a document as an artifact.
func (idx *Indexer) ExportArtifact(ctx context.Context, docID string) (*models.ChunkArtifact, error) {
	if _, err := idx.storage.GetDocument(ctx, docID); err != nil {
		return nil, err
	}
	chunks, err := idx.storage.GetChunksByDocumentID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	art := &models.ChunkArtifact{Chunks: make([]models.ArtifactChunk, len(chunks))}
	for i, c := range chunks {
		art.Chunks[i] = models.ArtifactChunk{ID: c.ID, Content: c.Content}
	}
	return art, nil
}

// store embeds chunks, drops those with degenerate vectors, and replaces the
// document's previous chunk set everywhere.
func (idx *Indexer) store(ctx context.Context, doc *models.Document, chunks []models.Chunk) error {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := embedding.EmbedAll(ctx, idx.embedder, texts, idx.config.EmbedBatchSize, idx.config.EmbedWorkers)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	embedded := make([]models.EmbeddedChunk, 0, len(chunks))
	kept := make([]models.Chunk, 0, len(chunks))
	var dropped []string
	for i, ch := range chunks {
		if ranking.IsDegenerate(vectors[i]) {
			dropped = append(dropped, ch.ID)
			continue
		}
		embedded = append(embedded, models.EmbeddedChunk{Chunk: ch, Vector: vectors[i]})
		kept = append(kept, ch)
	}
	if len(dropped) > 0 {
		idx.logger.Warn("dropped chunks with degenerate embeddings",
			zap.String("doc_id", doc.ID), zap.Strings("chunk_ids", dropped))
	}
	if len(embedded) == 0 {
		return errs.Validation("document %s produced no indexable chunks", doc.ID)
	}

	removed, err := idx.storage.ReplaceChunks(ctx, doc.ID, embedded)
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	if stale := staleIDs(removed, kept); len(stale) > 0 {
		if err := idx.vectorIndex.Remove(ctx, stale); err != nil {
			return fmt.Errorf("failed to delete from vector index: %w", err)
		}
		if err := idx.keywordIndex.DeleteChunks(ctx, stale); err != nil {
			return fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}

	items := make([]vector.Item, len(embedded))
	for i, ec := range embedded {
		items[i] = vector.Item{ID: ec.ID, Vector: ec.Vector, Metadata: ec.Metadata}
	}
	if err := idx.vectorIndex.Upsert(ctx, items); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	if err := idx.keywordIndex.IndexChunks(ctx, keywordTitle(doc.Title), kept); err != nil {
		return fmt.Errorf("failed to index keywords: %w", err)
	}

	doc.ChunkCount = len(embedded)
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	idx.logger.Info("document indexed",
		zap.String("doc_id", doc.ID),
		zap.String("period", doc.Period),
		zap.Int("chunks", doc.ChunkCount),
		zap.Int("replaced", len(removed)))
	return nil
}

// DeleteDocument removes a document from storage and both indexes.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	removed, err := idx.storage.DeleteDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := idx.vectorIndex.Remove(ctx, removed); err != nil {
		return fmt.Errorf("failed to delete from vector index: %w", err)
	}
	if err := idx.keywordIndex.DeleteChunks(ctx, removed); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	idx.logger.Info("document deleted", zap.String("doc_id", id), zap.Int("chunks", len(removed)))
	return nil
}

// Rebuild loads every stored chunk into the vector index, and into the
// keyword index when it is empty. It restores volatile indexes after a
// restart and returns the number of chunks loaded.
func (idx *Indexer) Rebuild(ctx context.Context) (int, error) {
	chunks, err := idx.storage.ListEmbeddedChunks(ctx, models.Filter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	items := make([]vector.Item, len(chunks))
	for i, c := range chunks {
		items[i] = vector.Item{ID: c.ID, Vector: c.Vector, Metadata: c.Metadata}
	}
	if err := idx.vectorIndex.Upsert(ctx, items); err != nil {
		return 0, fmt.Errorf("failed to index vectors: %w", err)
	}

	count, err := idx.keywordIndex.DocCount()
	if err != nil {
		return 0, err
	}
	if count == 0 {
		byDoc := make(map[string][]models.Chunk)
		var order []string
		for _, c := range chunks {
			if _, ok := byDoc[c.DocumentID]; !ok {
				order = append(order, c.DocumentID)
			}
			byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c.Chunk)
		}
		for _, docID := range order {
			title := docID
			if doc, err := idx.storage.GetDocument(ctx, docID); err == nil && doc.Title != "" {
				title = doc.Title
			}
			if err := idx.keywordIndex.IndexChunks(ctx, keywordTitle(title), byDoc[docID]); err != nil {
				return 0, fmt.Errorf("failed to index keywords: %w", err)
			}
		}
	}
	idx.logger.Info("indexes rebuilt", zap.Int("chunks", len(chunks)), zap.Bool("keyword", count == 0))
	return len(chunks), nil
}

func newDocument(in *models.DocumentInput) *models.Document {
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	title := in.Title
	if title == "" {
		title = id
	}
	period := in.Period
	if period == "" {
		period = models.ParsePeriod(title)
		if period == models.UnknownPeriod && in.Source != "" {
			period = models.ParsePeriod(in.Source)
		}
	}
	return &models.Document{
		ID:       id,
		Title:    title,
		Source:   in.Source,
		Period:   period,
		Metadata: in.Metadata,
	}
}

func chunkMetadata(doc *models.Document) map[string]string {
	meta := map[string]string{
		models.MetaDocument: doc.ID,
		models.MetaPeriod:   doc.Period,
		models.MetaTitle:    doc.Title,
	}
	if doc.Source != "" {
		meta[models.MetaSource] = doc.Source
	}
	return meta
}

func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// staleIDs returns removed ids not reused by kept.
func staleIDs(removed []string, kept []models.Chunk) []string {
	if len(removed) == 0 {
		return nil
	}
	reused := make(map[string]bool, len(kept))
	for _, c := range kept {
		reused[c.ID] = true
	}
	var stale []string
	for _, id := range removed {
		if !reused[id] {
			stale = append(stale, id)
		}
	}
	return stale
}

// keywordTitle splits file-style titles so "NVIDIA_Q1_2024" matches
// "nvidia q1" (the standard analyzer does not split on underscore).
func keywordTitle(title string) string {
	return strings.ReplaceAll(title, "_", " ")
}

// absPath returns the cleaned absolute form of path.
func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	return abs, nil
}
