//go:build !faiss || !cgo

package vector

import (
	"context"

	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/models"
)

// FAISSIndex is unavailable in this build. Build with -tags=faiss and cgo,
// with libfaiss_c installed, to enable it.
type FAISSIndex struct{}

func errNoFAISS() error {
	return errs.InvalidConfiguration("FAISS vector index not available: build with -tags=faiss and install the FAISS C library")
}

// NewFAISSIndex always fails in this build.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, errNoFAISS()
}

// Upsert is not implemented without FAISS.
func (f *FAISSIndex) Upsert(ctx context.Context, items []Item) error { return errNoFAISS() }

// Query is not implemented without FAISS.
func (f *FAISSIndex) Query(ctx context.Context, query []float32, k int, filter models.Filter) (*QueryResult, error) {
	return nil, errNoFAISS()
}

// Remove is not implemented without FAISS.
func (f *FAISSIndex) Remove(ctx context.Context, ids []string) error { return errNoFAISS() }

// Save is not implemented without FAISS.
func (f *FAISSIndex) Save(path string) error { return errNoFAISS() }

// Load is not implemented without FAISS.
func (f *FAISSIndex) Load(path string) error { return errNoFAISS() }

// Size returns 0 without FAISS.
func (f *FAISSIndex) Size() int { return 0 }

// Close is a no-op without FAISS.
func (f *FAISSIndex) Close() error { return nil }

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
