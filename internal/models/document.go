// Package models defines core data structures for filings, chunks, queries, and answers.
package models

import "time"

// Metadata keys carried on every stored chunk.
const (
	MetaDocument = "document"
	MetaPeriod   = "period"
	MetaSource   = "source"
	MetaTitle    = "title"
)

// Document is an ingested filing.
type Document struct {
	ID         string            `json:"id" db:"id"`
	Title      string            `json:"title" db:"title"`
	Source     string            `json:"source,omitempty" db:"source"`
	Period     string            `json:"period" db:"period"`
	Strategy   string            `json:"strategy" db:"strategy"`
	ChunkCount int               `json:"chunk_count" db:"chunk_count"`
	Metadata   map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// DocumentInput is the input for ingesting already-extracted text.
type DocumentInput struct {
	ID       string            `json:"id,omitempty"`
	Title    string            `json:"title,omitempty" validate:"omitempty,max=512"`
	Source   string            `json:"source,omitempty"`
	Period   string            `json:"period,omitempty"`
	Content  string            `json:"content" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
