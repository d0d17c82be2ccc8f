// Package search runs the semantic and keyword retrieval passes and merges
// them into one ranked list of chunks.
package search

import (
	"sort"
	"strings"

	"github.com/hyperjump/kessan/internal/keyword"
	"github.com/hyperjump/kessan/internal/models"
)

// Weights scales each pass before merging.
type Weights struct {
	Semantic float64
	Keyword  float64
}

// DefaultWeights favours the semantic pass 0.7 to 0.3.
var DefaultWeights = Weights{Semantic: 0.7, Keyword: 0.3}

// NormalizeKeywordScores normalizes keyword scores to [0,1] by max.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	var maxScore float64
	for _, r := range results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// Merge combines the semantic and keyword result lists. Each entry's Score
// is multiplied by its pass weight; entries with the same trimmed content
// collapse into one that keeps the higher weighted score. The result is
// sorted by score descending (ties keep semantic-first arrival order),
// truncated to n and ranked from 1.
func Merge(semantic, keywordHits []models.ScoredChunk, w Weights, n int) []models.ScoredChunk {
	if n <= 0 {
		return nil
	}
	merged := make([]models.ScoredChunk, 0, len(semantic)+len(keywordHits))
	byContent := make(map[string]int, cap(merged))

	add := func(sc models.ScoredChunk, weight float64, isSemantic bool) {
		raw := sc.Score
		sc.Score = raw * weight
		if isSemantic {
			sc.SemanticScore = raw
		} else {
			sc.KeywordScore = raw
		}
		key := strings.TrimSpace(sc.Chunk.Content)
		i, seen := byContent[key]
		if !seen {
			byContent[key] = len(merged)
			merged = append(merged, sc)
			return
		}
		prev := &merged[i]
		if isSemantic {
			prev.SemanticScore = max(prev.SemanticScore, raw)
		} else {
			prev.KeywordScore = max(prev.KeywordScore, raw)
		}
		if sc.Score > prev.Score {
			sc.SemanticScore = prev.SemanticScore
			sc.KeywordScore = prev.KeywordScore
			*prev = sc
		}
	}
	for _, sc := range semantic {
		add(sc, w.Semantic, true)
	}
	for _, sc := range keywordHits {
		add(sc, w.Keyword, false)
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > n {
		merged = merged[:n]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged
}
