// Package vector provides the vector index used by the semantic retrieval pass.
package vector

import (
	"context"

	"github.com/hyperjump/kessan/internal/models"
)

// VectorIndex stores (id, vector, metadata) triples and answers exact
// nearest-neighbour queries with an optional metadata filter.
type VectorIndex interface {
	Upsert(ctx context.Context, items []Item) error
	Query(ctx context.Context, query []float32, k int, filter models.Filter) (*QueryResult, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Item is one stored vector.
type Item struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// VectorResult is a single hit; ID is a chunk id.
type VectorResult struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// QueryResult is the outcome of a query.
type QueryResult struct {
	Hits []*VectorResult
	// Skipped lists stored vectors that could not be scored.
	Skipped []string
}

func (it Item) embedded() models.EmbeddedChunk {
	return models.EmbeddedChunk{
		Chunk:  models.Chunk{ID: it.ID, Metadata: it.Metadata},
		Vector: it.Vector,
	}
}

func hitsFrom(scored []models.ScoredChunk) []*VectorResult {
	hits := make([]*VectorResult, len(scored))
	for i, s := range scored {
		hits[i] = &VectorResult{ID: s.Chunk.ID, Score: s.Score, Metadata: s.Chunk.Metadata}
	}
	return hits
}
