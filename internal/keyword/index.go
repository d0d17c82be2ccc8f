// Package keyword provides the lexical (BM25-style) retrieval pass over chunks.
package keyword

import (
	"context"

	"github.com/hyperjump/kessan/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies matches in the document title. 1.0 or less disables it.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits (1 or 2, default 1).
	FuzzyEnabled bool
	Fuzziness    int
	// Filter restricts hits to chunks whose metadata matches exactly.
	Filter models.Filter
}

// KeywordIndex defines keyword search over chunks.
type KeywordIndex interface {
	IndexChunks(ctx context.Context, title string, chunks []models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DeleteChunks(ctx context.Context, ids []string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit; ID is a chunk id.
type KeywordResult struct {
	ID    string
	Score float64
}
