//go:build faiss && cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unsafe"

	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/models"
	"github.com/hyperjump/kessan/internal/ranking"
	"github.com/hyperjump/kessan/pkg/utils"
)

// FAISSIndex keeps unit-normalized vectors in a FAISS IndexFlatIP, so inner
// product equals cosine similarity. Chunk metadata and the id mapping live
// on the Go side. FAISS flat indexes cannot remove rows; removed or replaced
// labels stay in the index and are dropped from results.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	entries    map[string]faissEntry
	labels     map[int64]string
	nextLabel  int64
	mu         sync.RWMutex
}

// faissEntry is the Go-side record of one chunk. Degenerate vectors cannot be
// normalized and are never added to FAISS; they are reported as skipped.
type faissEntry struct {
	Label      int64
	Metadata   map[string]string
	Degenerate bool
}

type faissSnapshot struct {
	Dimensions int
	Entries    map[string]faissEntry
	NextLabel  int64
}

// NewFAISSIndex creates a FAISS inner-product index with the given dimension.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	index, err := newFlatIP(dimensions)
	if err != nil {
		return nil, err
	}
	return &FAISSIndex{
		index:      index,
		dimensions: dimensions,
		entries:    make(map[string]faissEntry),
		labels:     make(map[int64]string),
	}, nil
}

func newFlatIP(dimensions int) (*C.FaissIndex, error) {
	var flat *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return (*C.FaissIndex)(unsafe.Pointer(flat)), nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}

// Upsert adds items; an existing id is replaced.
func (f *FAISSIndex) Upsert(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	flat := make([]float32, 0, len(items)*f.dimensions)
	var added []string
	for _, it := range items {
		if len(it.Vector) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", it.ID, len(it.Vector), f.dimensions)
		}
		if old, ok := f.entries[it.ID]; ok && !old.Degenerate {
			delete(f.labels, old.Label)
		}
		if ranking.IsDegenerate(it.Vector) {
			f.entries[it.ID] = faissEntry{Label: -1, Metadata: copyMeta(it.Metadata), Degenerate: true}
			continue
		}
		flat = append(flat, unit(it.Vector)...)
		label := f.nextLabel + int64(len(added))
		f.entries[it.ID] = faissEntry{Label: label, Metadata: copyMeta(it.Metadata)}
		added = append(added, it.ID)
	}
	if len(added) == 0 {
		return nil
	}
	if ret := C.faiss_Index_add(f.index, C.idx_t(len(added)), (*C.float)(unsafe.Pointer(&flat[0]))); ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	for _, id := range added {
		f.labels[f.entries[id].Label] = id
	}
	f.nextLabel += int64(len(added))
	return nil
}

// Query searches every stored row and keeps the best k that pass filter.
func (f *FAISSIndex) Query(ctx context.Context, query []float32, k int, filter models.Filter) (*QueryResult, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if ranking.IsDegenerate(query) {
		return nil, errs.DegenerateVector("query vector has zero magnitude")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := &QueryResult{}
	for id, e := range f.entries {
		if e.Degenerate && matches(filter, e.Metadata) {
			out.Skipped = append(out.Skipped, id)
		}
	}
	sort.Strings(out.Skipped)

	ntotal := int(C.faiss_Index_ntotal(f.index))
	if k <= 0 || ntotal == 0 {
		return out, nil
	}
	q := unit(query)
	distances := make([]float32, ntotal)
	labels := make([]int64, ntotal)
	ret := C.faiss_Index_search(f.index, 1,
		(*C.float)(unsafe.Pointer(&q[0])),
		C.idx_t(ntotal),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])))
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	type scored struct {
		label int64
		hit   *VectorResult
	}
	var hits []scored
	for i, label := range labels {
		id, ok := f.labels[label]
		if label < 0 || !ok {
			continue
		}
		meta := f.entries[id].Metadata
		if !matches(filter, meta) {
			continue
		}
		hits = append(hits, scored{label: label, hit: &VectorResult{ID: id, Score: float64(distances[i]), Metadata: meta}})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].hit.Score != hits[j].hit.Score {
			return hits[i].hit.Score > hits[j].hit.Score
		}
		return hits[i].label < hits[j].label
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out.Hits = make([]*VectorResult, len(hits))
	for i, h := range hits {
		out.Hits[i] = h.hit
	}
	return out, nil
}

// Remove forgets ids. Their rows stay in FAISS but never reach results.
func (f *FAISSIndex) Remove(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if e, ok := f.entries[id]; ok {
			if !e.Degenerate {
				delete(f.labels, e.Label)
			}
			delete(f.entries, id)
		}
	}
	return nil
}

// Save writes the FAISS index to path+".faiss" and the id mapping to
// path+".idmap".
func (f *FAISSIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	cPath := C.CString(path + ".faiss")
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}

	mapFile, err := os.Create(path + ".idmap")
	if err != nil {
		return fmt.Errorf("create id map file: %w", err)
	}
	defer mapFile.Close()
	snap := faissSnapshot{Dimensions: f.dimensions, Entries: f.entries, NextLabel: f.nextLabel}
	if err := gob.NewEncoder(mapFile).Encode(snap); err != nil {
		return fmt.Errorf("encode id map: %w", err)
	}
	return nil
}

// Load replaces the contents with the index saved at path. Missing files
// leave the index unchanged.
func (f *FAISSIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	faissPath, mapPath := path+".faiss", path+".idmap"
	if _, err := os.Stat(faissPath); os.IsNotExist(err) {
		return nil
	}
	mapFile, err := os.Open(mapPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open id map file: %w", err)
	}
	defer mapFile.Close()
	var snap faissSnapshot
	if err := gob.NewDecoder(mapFile).Decode(&snap); err != nil {
		return fmt.Errorf("decode id map: %w", err)
	}
	if snap.Dimensions != f.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", snap.Dimensions, f.dimensions)
	}

	cPath := C.CString(faissPath)
	defer C.free(unsafe.Pointer(cPath))
	var loaded *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &loaded); ret != 0 {
		return fmt.Errorf("failed to load FAISS index: %s", faissLastError())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	f.entries = snap.Entries
	if f.entries == nil {
		f.entries = make(map[string]faissEntry)
	}
	f.nextLabel = snap.NextLabel
	f.labels = make(map[int64]string, len(f.entries))
	for id, e := range f.entries {
		if !e.Degenerate {
			f.labels[e.Label] = id
		}
	}
	return nil
}

// Size returns the number of live vectors.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Close frees the FAISS index.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

func unit(v []float32) []float32 {
	out := append([]float32(nil), v...)
	utils.NormalizeL2(out)
	return out
}

func matches(f models.Filter, meta map[string]string) bool {
	if !f.Active() {
		return true
	}
	v, ok := meta[f.Key]
	return ok && v == *f.Value
}
