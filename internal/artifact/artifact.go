// Package artifact reads and writes the pre-chunked JSON exchange format
// {"chunks":[{"id":...,"content":...}]}.
package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/models"
)

// FromChunks builds an artifact from chunks in order.
func FromChunks(chunks []models.Chunk) *models.ChunkArtifact {
	art := &models.ChunkArtifact{Chunks: make([]models.ArtifactChunk, len(chunks))}
	for i, c := range chunks {
		art.Chunks[i] = models.ArtifactChunk{ID: c.ID, Content: c.Content}
	}
	return art
}

// Validate rejects artifacts with blank content or repeated ids. Missing
// ids are allowed; the importer assigns them.
func Validate(art *models.ChunkArtifact) error {
	seen := make(map[string]bool, len(art.Chunks))
	for i, c := range art.Chunks {
		if strings.TrimSpace(c.Content) == "" {
			return errs.Validation("chunk %d has empty content", i)
		}
		if c.ID == "" {
			continue
		}
		if seen[c.ID] {
			return errs.Validation("duplicate chunk id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// Decode reads and validates an artifact.
func Decode(r io.Reader) (*models.ChunkArtifact, error) {
	var art models.ChunkArtifact
	dec := json.NewDecoder(r)
	if err := dec.Decode(&art); err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "invalid chunk artifact")
	}
	if art.Chunks == nil {
		return nil, errs.Validation(`chunk artifact has no "chunks" array`)
	}
	if err := Validate(&art); err != nil {
		return nil, err
	}
	return &art, nil
}

// Encode writes art as indented JSON.
func Encode(w io.Writer, art *models.ChunkArtifact) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(art); err != nil {
		return fmt.Errorf("encode chunk artifact: %w", err)
	}
	return nil
}

// ReadFile decodes the artifact stored at path.
func ReadFile(path string) (*models.ChunkArtifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile stores art at path, creating parent directories.
func WriteFile(path string, art *models.ChunkArtifact) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create artifact directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	if err := Encode(f, art); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
