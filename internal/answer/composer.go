// Package answer composes retrieved chunks into a prompt and returns the
// provider's reply, or an explicit insufficient-information answer when
// nothing relevant was retrieved.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/llm"
	"github.com/hyperjump/kessan/internal/models"
	"github.com/hyperjump/kessan/pkg/utils"
)

// InsufficientAnswer is returned verbatim when retrieval finds nothing.
const InsufficientAnswer = "I couldn't find relevant information in the database."

// Retriever finds chunks relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error)
}

// Providers resolves a provider by name; empty selects the default.
type Providers interface {
	Get(name string) (llm.Provider, error)
}

// ChunkSource loads the stored chunks of a document in order.
type ChunkSource interface {
	GetChunksByDocumentID(ctx context.Context, docID string) ([]models.Chunk, error)
}

// Composer answers questions and summarizes filings.
type Composer struct {
	retriever       Retriever
	providers       Providers
	chunks          ChunkSource
	maxSummaryChars int
	logger          *zap.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// WithMaxSummaryChars caps the text sent for summarization. Zero sends
// everything.
func WithMaxSummaryChars(n int) Option {
	return func(c *Composer) { c.maxSummaryChars = n }
}

// NewComposer returns a Composer.
func NewComposer(retriever Retriever, providers Providers, chunks ChunkSource, opts ...Option) *Composer {
	c := &Composer{
		retriever: retriever,
		providers: providers,
		chunks:    chunks,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildContext joins chunk contents with a blank line in retrieval order.
// Blank chunks are left out.
func BuildContext(results []models.ScoredChunk) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if s := strings.TrimSpace(r.Chunk.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Ask retrieves context for req.Question and asks the selected provider.
// An empty retrieval never reaches the provider.
func (c *Composer) Ask(ctx context.Context, req models.AskRequest) (*models.Answer, error) {
	start := time.Now()
	provider, err := c.providers.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	query := req.SearchQuery()
	resp, err := c.retriever.Search(ctx, &query)
	if err != nil {
		return nil, err
	}

	answer := &models.Answer{
		Question: query.Query,
		Provider: string(provider.Name()),
		Sources:  resp.Results,
	}
	text, err := provider.Answer(ctx, query.Query, BuildContext(resp.Results))
	switch {
	case errors.Is(err, errs.ErrEmptyContext):
		c.logger.Info("no context retrieved",
			zap.String("question", query.Query),
			zap.String("period", req.Period))
		answer.Text = InsufficientAnswer
		answer.Insufficient = true
		answer.Sources = []models.ScoredChunk{}
	case err != nil:
		return nil, fmt.Errorf("answer with %s: %w", provider.Name(), err)
	default:
		answer.Text = text
	}
	answer.Elapsed = time.Since(start).Milliseconds()
	return answer, nil
}

// Summarize summarizes req.Text, or the stored chunks of req.DocumentID
// joined in order.
func (c *Composer) Summarize(ctx context.Context, req models.SummarizeRequest) (*models.Summary, error) {
	provider, err := c.providers.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	text := req.Text
	if strings.TrimSpace(text) == "" {
		if req.DocumentID == "" {
			return nil, errs.Validation("either text or document_id is required")
		}
		chunks, err := c.chunks.GetChunksByDocumentID(ctx, req.DocumentID)
		if err != nil {
			return nil, err
		}
		if len(chunks) == 0 {
			return nil, errs.NotFound("document not found: %s", req.DocumentID)
		}
		parts := make([]string, len(chunks))
		for i, ch := range chunks {
			parts[i] = ch.Content
		}
		text = strings.Join(parts, "\n\n")
	}
	if c.maxSummaryChars > 0 {
		text = utils.Truncate(text, c.maxSummaryChars)
	}

	out, err := provider.Summarize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("summarize with %s: %w", provider.Name(), err)
	}
	return &models.Summary{DocumentID: req.DocumentID, Provider: string(provider.Name()), Text: out}, nil
}
