package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hyperjump/kessan/internal/models"
)

var (
	vectorsBucket = []byte("vectors")
	metaBucket    = []byte("meta")
	dimensionsKey = []byte("dimensions")
)

// BoltIndex keeps vectors in a bbolt file and ranks them by full scan.
// Writes are durable on return so Save and Load are only needed for copies.
type BoltIndex struct {
	db         *bolt.DB
	path       string
	dimensions int
}

// NewBoltIndex opens or creates the index file at path.
func NewBoltIndex(path string, dimensions int) (*BoltIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if path == "" {
		return nil, fmt.Errorf("bolt index requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt index: %w", err)
	}
	idx := &BoltIndex{db: db, path: path, dimensions: dimensions}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(vectorsBucket); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		if stored := meta.Get(dimensionsKey); stored != nil {
			if got := int(binary.LittleEndian.Uint32(stored)); got != dimensions {
				return fmt.Errorf("dimension mismatch: file has %d, index expects %d", got, dimensions)
			}
			return nil
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(dimensions))
		return meta.Put(dimensionsKey, buf)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt index: %w", err)
	}
	return idx, nil
}

// Type returns the index type identifier.
func (b *BoltIndex) Type() string {
	return string(IndexTypeBolt)
}

// Upsert writes items in one transaction.
func (b *BoltIndex) Upsert(ctx context.Context, items []Item) error {
	for _, it := range items {
		if len(it.Vector) != b.dimensions {
			return fmt.Errorf("vector dimension mismatch for %s: got %d, expected %d", it.ID, len(it.Vector), b.dimensions)
		}
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(vectorsBucket)
		for _, it := range items {
			rec, err := encodeItem(it)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(it.ID), rec); err != nil {
				return fmt.Errorf("put %s: %w", it.ID, err)
			}
		}
		return nil
	})
}

// Query scans every stored vector; ties rank in key order.
func (b *BoltIndex) Query(ctx context.Context, query []float32, k int, filter models.Filter) (*QueryResult, error) {
	if len(query) != b.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), b.dimensions)
	}
	var pool []models.EmbeddedChunk
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(vectorsBucket).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			it, err := decodeItem(string(k), v)
			if err != nil {
				return err
			}
			pool = append(pool, it.embedded())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan bolt index: %w", err)
	}
	return rankPool(query, pool, k, filter)
}

// Remove deletes ids; unknown ids are ignored.
func (b *BoltIndex) Remove(ctx context.Context, ids []string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(vectorsBucket)
		for _, id := range ids {
			if err := bucket.Delete([]byte(id)); err != nil {
				return fmt.Errorf("delete %s: %w", id, err)
			}
		}
		return nil
	})
}

// Save syncs the file, or copies a consistent snapshot to path when it
// differs from the index file.
func (b *BoltIndex) Save(path string) error {
	if path == "" || path == b.path {
		return b.db.Sync()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	return b.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(path, 0600)
	})
}

// Load is a no-op: the index is read from its own file on open.
func (b *BoltIndex) Load(path string) error {
	return nil
}

// Size returns the number of stored vectors.
func (b *BoltIndex) Size() int {
	n := 0
	_ = b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(vectorsBucket).Stats().KeyN
		return nil
	})
	return n
}

// Close closes the underlying database.
func (b *BoltIndex) Close() error {
	return b.db.Close()
}
