//go:build !faiss || !cgo

package vector

import (
	"errors"
	"testing"

	"github.com/hyperjump/kessan/internal/errs"
)

func TestNewVectorIndex_faissUnavailable(t *testing.T) {
	if IsFAISSAvailable() {
		t.Fatal("FAISS should not be available without the faiss build tag")
	}
	_, err := NewVectorIndex("faiss", "", 3)
	if !errors.Is(err, errs.ErrInvalidConfiguration) {
		t.Errorf("expected invalid configuration, got %v", err)
	}
	if !IndexTypeFAISS.Snapshotted() || !IndexTypeMemory.Snapshotted() || IndexTypeBolt.Snapshotted() {
		t.Error("unexpected Snapshotted values")
	}
}
