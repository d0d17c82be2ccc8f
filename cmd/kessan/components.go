package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/answer"
	"github.com/hyperjump/kessan/internal/chunker"
	"github.com/hyperjump/kessan/internal/config"
	"github.com/hyperjump/kessan/internal/embedding"
	"github.com/hyperjump/kessan/internal/extract"
	"github.com/hyperjump/kessan/internal/indexer"
	"github.com/hyperjump/kessan/internal/keyword"
	"github.com/hyperjump/kessan/internal/llm"
	"github.com/hyperjump/kessan/internal/search"
	"github.com/hyperjump/kessan/internal/storage"
	"github.com/hyperjump/kessan/internal/vector"
)

const memoryPath = ":memory:"

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  vector.VectorIndex
	KeywordIndex keyword.KeywordIndex
	Engine       *search.Engine
	Indexer      *indexer.Indexer
	Providers    *llm.Registry
	Composer     *answer.Composer

	snapshotPath string
	logger       *zap.Logger
}

// Close saves a memory or FAISS vector index snapshot and closes every
// service.
func (c *Components) Close() {
	if c.VectorIndex != nil {
		if err := c.VectorIndex.Save(c.snapshotPath); err != nil {
			c.logger.Warn("vector index save failed", zap.String("path", c.snapshotPath), zap.Error(err))
		}
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

// persistentPath maps the in-memory marker to "", which the indexes read as
// "do not persist".
func persistentPath(path string) string {
	if path == memoryPath {
		return ""
	}
	return path
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, idxOpts ...indexer.IndexerOption) (*Components, error) {
	c := &Components{logger: logger}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	embedder, err := embedding.New(cfg.EmbeddingConfig(), embedding.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder
	dims := embedder.Dimensions()

	indexType := cfg.Storage.VectorIndexType
	vectorPath := persistentPath(cfg.Storage.VectorIndexPath)
	if indexType == string(vector.IndexTypeBolt) && vectorPath == "" {
		logger.Warn("bolt vector index needs a file path, falling back to memory")
		indexType = string(vector.IndexTypeMemory)
	}
	vectorIndex, err := vector.NewVectorIndex(indexType, vectorPath, dims)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	c.VectorIndex = vectorIndex
	if vector.IndexType(indexType).Snapshotted() {
		c.snapshotPath = vectorPath
		if err := vectorIndex.Load(vectorPath); err != nil {
			logger.Warn("vector index snapshot not loaded, rebuilding from storage", zap.String("path", vectorPath), zap.Error(err))
		}
	}
	logger.Info("vector index initialized",
		zap.String("type", indexType),
		zap.Int("dimensions", dims),
		zap.Int("size", vectorIndex.Size()))

	keywordIndex, err := keyword.NewBleveIndex(persistentPath(cfg.Storage.BleveIndexPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywordIndex

	chunkOpts, err := cfg.ChunkerOptions()
	if err != nil {
		return nil, err
	}
	chk, err := chunker.New(chunkOpts, chunker.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	opts := append([]indexer.IndexerOption{indexer.WithLogger(logger)}, idxOpts...)
	c.Indexer = indexer.NewIndexer(store, embedder, vectorIndex, keywordIndex, chk, extract.NewExtractor(), cfg.IndexerConfig(), opts...)
	searchOpts := []search.Option{search.WithLogger(logger)}
	if cfg.Search.SpellCorrectionOrDefault() {
		searchOpts = append(searchOpts, search.WithSpellChecker(keyword.NewSpellChecker(keywordIndex)))
	}
	c.Engine = search.NewEngine(store, embedder, vectorIndex, keywordIndex, cfg.SearchConfig(), searchOpts...)

	providerConfigs, err := cfg.ProviderConfigs()
	if err != nil {
		return nil, err
	}
	c.Providers, err = llm.NewRegistry(providerConfigs, cfg.LLM.DefaultProvider, llm.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	c.Composer = answer.NewComposer(c.Engine, c.Providers, store,
		answer.WithLogger(logger),
		answer.WithMaxSummaryChars(cfg.LLM.SummaryMaxChars))

	if err := c.ensureIndexes(context.Background()); err != nil {
		return nil, err
	}
	ok = true
	return c, nil
}

// ensureIndexes reloads the retrieval indexes from storage when either is
// empty but storage still holds chunks, e.g. after a restart with a memory
// vector index or a deleted bleve directory.
func (c *Components) ensureIndexes(ctx context.Context) error {
	chunks, err := c.Storage.CountChunks(ctx)
	if err != nil || chunks == 0 {
		return err
	}
	kwCount, err := c.KeywordIndex.DocCount()
	if err != nil {
		return err
	}
	if int64(c.VectorIndex.Size()) >= chunks && kwCount > 0 {
		return nil
	}
	n, err := c.Indexer.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("failed to rebuild indexes: %w", err)
	}
	c.logger.Info("indexes restored from storage", zap.Int("chunks", n))
	return nil
}
