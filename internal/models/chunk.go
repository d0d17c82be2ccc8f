package models

import (
	"fmt"
	"time"
)

// Chunk is a contiguous span of document text. TokenCount is measured in
// the same word units the chunker sizes by.
type Chunk struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Index      int               `json:"chunk_index"`
	Content    string            `json:"content"`
	TokenCount int               `json:"token_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// EmbeddedChunk is a chunk with its vector.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"-"`
}

// ScoredChunk pairs a chunk with its similarity to one query.
type ScoredChunk struct {
	Chunk         Chunk   `json:"chunk"`
	Score         float64 `json:"score"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
	KeywordScore  float64 `json:"keyword_score,omitempty"`
	Rank          int     `json:"rank"`
}

// ChunkID returns the stable id of the i-th chunk of a document.
func ChunkID(documentID string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, i)
}
