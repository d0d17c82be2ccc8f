package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func embedded(docID string, i int, content, period string, vec ...float32) models.EmbeddedChunk {
	return models.EmbeddedChunk{
		Chunk: models.Chunk{
			ID:         models.ChunkID(docID, i),
			DocumentID: docID,
			Index:      i,
			Content:    content,
			TokenCount: len(strings.Fields(content)),
			Metadata:   map[string]string{models.MetaDocument: docID, models.MetaPeriod: period},
		},
		Vector: vec,
	}
}

func TestSQLiteStorage_DocumentCRUD(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLiteStorage(filepath.Join(dir, "sub", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	doc := &models.Document{
		ID:       "nvda-q1",
		Title:    "NVIDIA Q1",
		Period:   "Q1-2024",
		Strategy: "recursive",
		Metadata: map[string]string{"ticker": "NVDA"},
	}
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetDocument(ctx, "nvda-q1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "NVIDIA Q1" || got.Period != "Q1-2024" || got.Metadata["ticker"] != "NVDA" {
		t.Errorf("got %+v", got)
	}

	doc.Title = "Updated"
	doc.ChunkCount = 3
	if err := store.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDocument(ctx, "nvda-q1")
	if got.Title != "Updated" || got.ChunkCount != 3 {
		t.Errorf("upsert did not replace: %+v", got)
	}

	list, err := store.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 doc, got %d", len(list))
	}

	if _, err := store.DeleteDocument(ctx, "nvda-q1"); err != nil {
		t.Fatal(err)
	}
	_, err = store.GetDocument(ctx, "nvda-q1")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if _, err := store.DeleteDocument(ctx, "nvda-q1"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
}

func TestSQLiteStorage_DefaultPeriod(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := store.UpsertDocument(ctx, &models.Document{ID: "memo"}); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetDocument(ctx, "memo")
	if err != nil {
		t.Fatal(err)
	}
	if got.Period != models.UnknownPeriod {
		t.Errorf("period = %q, want %q", got.Period, models.UnknownPeriod)
	}
}

func TestSQLiteStorage_ReplaceChunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := store.UpsertDocument(ctx, &models.Document{ID: "d"}); err != nil {
		t.Fatal(err)
	}

	first := []models.EmbeddedChunk{
		embedded("d", 0, "Revenue grew.", "Q1-2024", 1, 0),
		embedded("d", 1, "Costs fell.", "Q1-2024", 0, 1),
	}
	removed, err := store.ReplaceChunks(ctx, "d", first)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 0 {
		t.Errorf("first ingest removed %v", removed)
	}

	second := []models.EmbeddedChunk{embedded("d", 0, "Margins widened.", "Q2-2024", 1, 1)}
	second[0].ID = "d_v2_chunk_0"
	removed, err = store.ReplaceChunks(ctx, "d", second)
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 || removed[0] != "d_chunk_0" || removed[1] != "d_chunk_1" {
		t.Errorf("removed = %v", removed)
	}

	chunks, err := store.GetChunksByDocumentID(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Content != "Margins widened." {
		t.Fatalf("chunks after replace = %+v", chunks)
	}
	if chunks[0].Metadata[models.MetaPeriod] != "Q2-2024" {
		t.Errorf("metadata = %v", chunks[0].Metadata)
	}

	count, _ := store.CountChunks(ctx)
	if count != 1 {
		t.Errorf("CountChunks = %d, want 1", count)
	}
}

func TestSQLiteStorage_ReplaceChunksRejectsForeignChunk(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_, err := store.ReplaceChunks(ctx, "a", []models.EmbeddedChunk{embedded("b", 0, "x", "FY2023", 1)})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestSQLiteStorage_GetChunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_, err := store.ReplaceChunks(ctx, "d", []models.EmbeddedChunk{
		embedded("d", 0, "alpha", "Q1-2024", 1),
		embedded("d", 1, "beta", "Q1-2024", 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := store.GetChunks(ctx, []string{"d_chunk_1", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got["d_chunk_1"].Content != "beta" {
		t.Errorf("GetChunks = %+v", got)
	}
	empty, err := store.GetChunks(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("GetChunks(nil) = %v, %v", empty, err)
	}
}

func TestSQLiteStorage_ListEmbeddedChunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if _, err := store.ReplaceChunks(ctx, "q1", []models.EmbeddedChunk{
		embedded("q1", 0, "q1 revenue", "Q1-2024", 0.5, 0.25),
		embedded("q1", 1, "no vector", "Q1-2024"),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ReplaceChunks(ctx, "q2", []models.EmbeddedChunk{
		embedded("q2", 0, "q2 revenue", "Q2-2024", 1, 0),
	}); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListEmbeddedChunks(ctx, models.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 embedded chunks, got %d", len(all))
	}
	if all[0].ID != "q1_chunk_0" || len(all[0].Vector) != 2 || all[0].Vector[1] != 0.25 {
		t.Errorf("first = %+v", all[0])
	}

	q2, err := store.ListEmbeddedChunks(ctx, models.PeriodFilter("Q2-2024"))
	if err != nil {
		t.Fatal(err)
	}
	if len(q2) != 1 || q2[0].DocumentID != "q2" {
		t.Errorf("filtered = %+v", q2)
	}
}

func TestSQLiteStorage_DeleteDocumentReturnsChunkIDs(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if err := store.UpsertDocument(ctx, &models.Document{ID: "d"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ReplaceChunks(ctx, "d", []models.EmbeddedChunk{
		embedded("d", 0, "a", "FY2023", 1),
		embedded("d", 1, "b", "FY2023", 1),
	}); err != nil {
		t.Fatal(err)
	}
	removed, err := store.DeleteDocument(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 {
		t.Errorf("removed = %v", removed)
	}
	if n, _ := store.CountDocuments(ctx); n != 0 {
		t.Errorf("CountDocuments = %d", n)
	}
	if n, _ := store.CountChunks(ctx); n != 0 {
		t.Errorf("CountChunks = %d", n)
	}
}
