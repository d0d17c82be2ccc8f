package ranking

import (
	"sort"

	"github.com/hyperjump/kessan/internal/errs"
	"github.com/hyperjump/kessan/internal/models"
)

// FilterByMetadata returns the members of pool whose metadata[key] equals
// *value, in pool order. A nil value returns pool unchanged.
func FilterByMetadata(pool []models.EmbeddedChunk, key string, value *string) []models.EmbeddedChunk {
	if value == nil {
		return pool
	}
	out := make([]models.EmbeddedChunk, 0, len(pool))
	for _, c := range pool {
		if v, ok := c.Metadata[key]; ok && v == *value {
			out = append(out, c)
		}
	}
	return out
}

// Filter applies f with FilterByMetadata.
func Filter(pool []models.EmbeddedChunk, f models.Filter) []models.EmbeddedChunk {
	if f.Key == "" {
		return pool
	}
	return FilterByMetadata(pool, f.Key, f.Value)
}

// Ranking is the outcome of Rank.
type Ranking struct {
	Results []models.ScoredChunk
	// Skipped holds the ids of candidates with zero-magnitude vectors.
	Skipped []string
}

// Rank scores every pool member against query and returns the first n by
// descending cosine similarity. Ties keep pool order. Degenerate candidates
// are skipped; a degenerate query fails.
func Rank(query []float32, pool []models.EmbeddedChunk, n int) (Ranking, error) {
	if n < 1 {
		return Ranking{}, errs.InvalidConfiguration("result count must be at least 1, got %d", n)
	}
	if IsDegenerate(query) {
		return Ranking{}, errs.DegenerateVector("query vector has zero magnitude")
	}
	var r Ranking
	scored := make([]models.ScoredChunk, 0, len(pool))
	for _, c := range pool {
		s, err := Cosine(query, c.Vector)
		if err != nil {
			if errs.IsKind(err, errs.KindDegenerateVector) {
				r.Skipped = append(r.Skipped, c.ID)
				continue
			}
			return Ranking{}, err
		}
		scored = append(scored, models.ScoredChunk{Chunk: c.Chunk, Score: s, SemanticScore: s})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if n > len(scored) {
		n = len(scored)
	}
	r.Results = scored[:n]
	for i := range r.Results {
		r.Results[i].Rank = i + 1
	}
	return r, nil
}
