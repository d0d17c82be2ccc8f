package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Get("a")               // a is now most recent
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d", c.Len())
	}
}

type countingEmbedder struct {
	*HashEmbedder
	batches [][]string
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches = append(c.batches, append([]string(nil), texts...))
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.batches = append(c.batches, []string{text})
	return c.HashEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder_ForwardsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "gross margin"); err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(ctx, []string{"revenue", "gross margin", "cash flow"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	last := inner.batches[len(inner.batches)-1]
	if len(last) != 2 || last[0] != "revenue" || last[1] != "cash flow" {
		t.Errorf("expected only misses forwarded, got %q", last)
	}
	want, _ := NewHashEmbedder(16).Embed(ctx, "gross margin")
	for i := range want {
		if vecs[1][i] != want[i] {
			t.Fatal("cached vector misplaced")
		}
	}
	if _, err := e.Embed(ctx, "cash flow"); err != nil {
		t.Fatal(err)
	}
	if len(inner.batches) != 2 {
		t.Errorf("expected cache hit, inner calls = %d", len(inner.batches))
	}
}
