package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// slowEmbedder finishes earlier batches last to expose ordering bugs.
type slowEmbedder struct {
	inFlight, peak atomic.Int32
	failOn         string
}

func (s *slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (s *slowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	var idx int
	fmt.Sscanf(texts[0], "chunk %d", &idx)
	time.Sleep(time.Duration(20-idx%20) * time.Millisecond)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if t == s.failOn {
			return nil, errors.New("quota exceeded")
		}
		fmt.Sscanf(t, "chunk %d", &idx)
		out[i] = []float32{float32(idx), 1}
	}
	return out, nil
}

func (s *slowEmbedder) Dimensions() int { return 2 }
func (s *slowEmbedder) Close() error    { return nil }

func TestEmbedAll_PreservesOrder(t *testing.T) {
	texts := make([]string, 23)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}
	e := &slowEmbedder{}
	vecs, err := EmbedAll(context.Background(), e, texts, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors", len(vecs))
	}
	for i, v := range vecs {
		if int(v[0]) != i {
			t.Fatalf("vector %d belongs to chunk %v", i, v[0])
		}
	}
	if p := e.peak.Load(); p > 4 {
		t.Errorf("worker limit exceeded: %d in flight", p)
	}
}

func TestEmbedAll_PropagatesError(t *testing.T) {
	texts := []string{"chunk 0", "chunk 1", "chunk 2", "chunk 3"}
	_, err := EmbedAll(context.Background(), &slowEmbedder{failOn: "chunk 2"}, texts, 1, 2)
	if err == nil || err.Error() != "quota exceeded" {
		t.Errorf("expected upstream error, got %v", err)
	}
}

func TestEmbedAll_Empty(t *testing.T) {
	vecs, err := EmbedAll(context.Background(), &slowEmbedder{}, nil, 0, 0)
	if err != nil || len(vecs) != 0 {
		t.Errorf("got %v, %v", vecs, err)
	}
}
