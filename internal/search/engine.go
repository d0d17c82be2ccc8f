package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kessan/internal/embedding"
	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/keyword"
	"github.com/hyperjump/kessan/internal/models"
	"github.com/hyperjump/kessan/internal/storage"
	"github.com/hyperjump/kessan/internal/vector"
)

// Config tunes retrieval.
type Config struct {
	Weights Weights
	// CandidateMultiplier sets how many hits each pass fetches per
	// requested result before merging.
	CandidateMultiplier int
	FuzzyEnabled        bool
	Fuzziness           int
	TitleBoost          float64
}

// DefaultConfig returns the 0.7/0.3 hybrid configuration.
func DefaultConfig() Config {
	return Config{
		Weights:             DefaultWeights,
		CandidateMultiplier: 4,
		Fuzziness:           1,
		TitleBoost:          1.5,
	}
}

// Engine runs hybrid (semantic + keyword) retrieval over stored chunks.
type Engine struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	spellChecker *keyword.SpellChecker
	config       Config
	logger       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSpellChecker retries a keyword pass that found nothing once with the
// query corrected against the index vocabulary. Ignored when fuzzy matching
// is enabled.
func WithSpellChecker(sc *keyword.SpellChecker) Option {
	return func(e *Engine) { e.spellChecker = sc }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	cfg Config,
	opts ...Option,
) *Engine {
	if cfg.CandidateMultiplier < 1 {
		cfg.CandidateMultiplier = 1
	}
	e := &Engine{
		storage:      storage,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		config:       cfg,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search validates query, runs the passes its mode selects and returns the
// merged top results. In hybrid mode a query that embeds to a zero vector
// falls back to the keyword pass alone; in semantic mode it fails with
// DegenerateVector.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	runSemantic := query.Mode != models.ModeKeyword
	runKeyword := query.Mode != models.ModeSemantic
	candidates := query.Limit * e.config.CandidateMultiplier

	var (
		semanticHits *vector.QueryResult
		keywordHits  []*keyword.KeywordResult
	)
	g, gctx := errgroup.WithContext(ctx)
	if runSemantic {
		g.Go(func() error {
			hits, err := e.semanticPass(gctx, query.Query, candidates, query.Filter)
			if errs.IsKind(err, errs.KindDegenerateVector) && query.Mode == models.ModeHybrid {
				e.logger.Warn("query embedding is degenerate, using keyword pass only",
					zap.String("query", query.Query))
				return nil
			}
			semanticHits = hits
			return err
		})
	}
	var corrected string
	if runKeyword {
		g.Go(func() error {
			hits, fixed, err := e.keywordPass(gctx, query.Query, candidates, query.Filter)
			if err != nil {
				return err
			}
			keywordHits, corrected = hits, fixed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	semantic, keywordScored, err := e.hydrate(ctx, semanticHits, keywordHits)
	if err != nil {
		return nil, err
	}

	weights := e.config.Weights
	switch query.Mode {
	case models.ModeSemantic:
		weights = Weights{Semantic: 1}
	case models.ModeKeyword:
		weights = Weights{Keyword: 1}
	}
	results := Merge(semantic, keywordScored, weights, query.Limit)

	response := &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Query,
		Mode:      query.Mode,
		Corrected: corrected,
	}
	if semanticHits != nil {
		response.Skipped = len(semanticHits.Skipped)
	}
	e.logger.Debug("search complete",
		zap.String("query", query.Query),
		zap.String("mode", string(query.Mode)),
		zap.Int("semantic_hits", len(semantic)),
		zap.Int("keyword_hits", len(keywordScored)),
		zap.Int("results", len(results)),
		zap.Int64("query_time_ms", response.QueryTime))
	return response, nil
}

// keywordPass runs the lexical search. When it finds nothing and a spell
// checker is configured, it retries with the corrected query and returns
// that query alongside the hits.
func (e *Engine) keywordPass(ctx context.Context, text string, k int, filter models.Filter) ([]*keyword.KeywordResult, string, error) {
	opts := &keyword.SearchOptions{
		TitleBoost:   e.config.TitleBoost,
		FuzzyEnabled: e.config.FuzzyEnabled,
		Fuzziness:    e.config.Fuzziness,
		Filter:       filter,
	}
	hits, err := e.keywordIndex.Search(ctx, text, k, opts)
	if err != nil {
		return nil, "", fmt.Errorf("keyword search failed: %w", err)
	}
	if len(hits) > 0 || e.spellChecker == nil || e.config.FuzzyEnabled {
		return hits, "", nil
	}
	correction, err := e.spellChecker.Check(text)
	if err != nil {
		e.logger.Warn("spell check failed", zap.Error(err))
		return hits, "", nil
	}
	if !correction.Changed() {
		return hits, "", nil
	}
	hits, err = e.keywordIndex.Search(ctx, correction.Corrected, k, opts)
	if err != nil {
		return nil, "", fmt.Errorf("keyword search failed: %w", err)
	}
	if len(hits) == 0 {
		return hits, "", nil
	}
	e.logger.Debug("keyword query corrected",
		zap.String("query", text),
		zap.String("corrected", correction.Corrected))
	return hits, correction.Corrected, nil
}

func (e *Engine) semanticPass(ctx context.Context, text string, k int, filter models.Filter) (*vector.QueryResult, error) {
	queryEmbedding, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	hits, err := e.vectorIndex.Query(ctx, queryEmbedding, k, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(hits.Skipped) > 0 {
		e.logger.Warn("skipped degenerate vectors", zap.Strings("chunk_ids", hits.Skipped))
	}
	return hits, nil
}

// hydrate loads chunk content for both hit lists. Hits whose chunk is no
// longer stored are dropped.
func (e *Engine) hydrate(ctx context.Context, sem *vector.QueryResult, kw []*keyword.KeywordResult) ([]models.ScoredChunk, []models.ScoredChunk, error) {
	var ids []string
	if sem != nil {
		for _, h := range sem.Hits {
			ids = append(ids, h.ID)
		}
	}
	for _, h := range kw {
		ids = append(ids, h.ID)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}
	chunks, err := e.storage.GetChunks(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	var semantic []models.ScoredChunk
	if sem != nil {
		for _, h := range sem.Hits {
			c, ok := chunks[h.ID]
			if !ok {
				e.logger.Debug("vector hit without stored chunk", zap.String("chunk_id", h.ID))
				continue
			}
			semantic = append(semantic, models.ScoredChunk{Chunk: c, Score: h.Score})
		}
	}
	keywordScores := NormalizeKeywordScores(kw)
	keywordScored := make([]models.ScoredChunk, 0, len(kw))
	for _, h := range kw {
		c, ok := chunks[h.ID]
		if !ok {
			e.logger.Debug("keyword hit without stored chunk", zap.String("chunk_id", h.ID))
			continue
		}
		keywordScored = append(keywordScored, models.ScoredChunk{Chunk: c, Score: keywordScores[h.ID]})
	}
	return semantic, keywordScored, nil
}
