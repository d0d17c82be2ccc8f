package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory keeps vectors in memory and snapshots them with Save.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeBolt keeps vectors in a bbolt file.
	IndexTypeBolt IndexType = "bolt"
	// IndexTypeFAISS keeps vectors in a FAISS flat index and snapshots them
	// with Save. Requires -tags=faiss and the FAISS C library.
	IndexTypeFAISS IndexType = "faiss"
)

// NewVectorIndex creates a vector index of the specified type. path is the
// bbolt file for "bolt" and ignored otherwise; memory and faiss indexes are
// persisted with Save and Load.
func NewVectorIndex(indexType, path string, dimensions int) (VectorIndex, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeBolt:
		return NewBoltIndex(path, dimensions)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, bolt, faiss)", indexType)
	}
}

// IsFAISSAvailable reports whether FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}

// Snapshotted reports whether indexes of this type live in memory and are
// persisted with Save and Load rather than by their backing store.
func (t IndexType) Snapshotted() bool {
	return t == IndexTypeMemory || t == IndexTypeFAISS
}
