// Package storage defines the persistence interface for filings and their chunks.
package storage

import (
	"context"

	"github.com/hyperjump/kessan/internal/models"
)

// Storage defines document and chunk persistence operations.
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) ([]string, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Chunk operations
	ReplaceChunks(ctx context.Context, docID string, chunks []models.EmbeddedChunk) ([]string, error)
	GetChunksByDocumentID(ctx context.Context, docID string) ([]models.Chunk, error)
	GetChunks(ctx context.Context, ids []string) (map[string]models.Chunk, error)
	ListEmbeddedChunks(ctx context.Context, filter models.Filter) ([]models.EmbeddedChunk, error)

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
