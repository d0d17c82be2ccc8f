package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/models"
	"github.com/hyperjump/kessan/internal/ranking"
)

// MemoryIndex is a brute-force in-memory index. Insertion order is kept so
// equal scores rank deterministically.
type MemoryIndex struct {
	dimensions int
	items      []Item
	pos        map[string]int
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		pos:        make(map[string]int),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Upsert stores items, replacing any with the same id in place.
func (m *MemoryIndex) Upsert(ctx context.Context, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		if len(it.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", it.ID, len(it.Vector), m.dimensions)
		}
		stored := Item{ID: it.ID, Vector: append([]float32(nil), it.Vector...), Metadata: copyMeta(it.Metadata)}
		if i, ok := m.pos[it.ID]; ok {
			m.items[i] = stored
			continue
		}
		m.pos[it.ID] = len(m.items)
		m.items = append(m.items, stored)
	}
	return nil
}

// Query ranks the filtered items by cosine similarity.
func (m *MemoryIndex) Query(ctx context.Context, query []float32, k int, filter models.Filter) (*QueryResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	pool := make([]models.EmbeddedChunk, len(m.items))
	for i, it := range m.items {
		pool[i] = it.embedded()
	}
	m.mu.RUnlock()
	return rankPool(query, pool, k, filter)
}

func rankPool(query []float32, pool []models.EmbeddedChunk, k int, filter models.Filter) (*QueryResult, error) {
	if ranking.IsDegenerate(query) {
		return nil, errs.DegenerateVector("query vector has zero magnitude")
	}
	pool = ranking.Filter(pool, filter)
	if k <= 0 || len(pool) == 0 {
		return &QueryResult{}, nil
	}
	r, err := ranking.Rank(query, pool, k)
	if err != nil {
		return nil, err
	}
	return &QueryResult{Hits: hitsFrom(r.Results), Skipped: r.Skipped}, nil
}

// Remove deletes items by id.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]Item, 0, len(m.items))
	m.pos = make(map[string]int, len(m.items))
	for _, it := range m.items {
		if removeSet[it.ID] {
			continue
		}
		m.pos[it.ID] = len(kept)
		kept = append(kept, it)
	}
	m.items = kept
	return nil
}

// Save persists the index to path, creating the directory if needed.
// Format: dimension (4), n (4), then per item: idLen (4), id, recLen (4), record.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.items))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, it := range m.items {
		rec, err := encodeItem(it)
		if err != nil {
			return err
		}
		for _, part := range [][]byte{[]byte(it.ID), rec} {
			if err := binary.Write(w, binary.LittleEndian, uint32(len(part))); err != nil {
				return fmt.Errorf("write length: %w", err)
			}
			if _, err := w.Write(part); err != nil {
				return fmt.Errorf("write item %s: %w", it.ID, err)
			}
		}
	}
	return w.Flush()
}

// Load replaces the contents with the index at path. A missing file leaves
// the index unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	items := make([]Item, 0, n)
	pos := make(map[string]int, n)
	for i := uint32(0); i < n; i++ {
		id, err := readBlock(r)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		rec, err := readBlock(r)
		if err != nil {
			return fmt.Errorf("read item: %w", err)
		}
		it, err := decodeItem(string(id), rec)
		if err != nil {
			return err
		}
		pos[it.ID] = len(items)
		items = append(items, it)
	}
	m.mu.Lock()
	m.items, m.pos = items, pos
	m.mu.Unlock()
	return nil
}

func readBlock(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

func copyMeta(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
