// Package ranking scores embedded chunks against a query vector by cosine
// similarity and selects the top N.
package ranking

import (
	"math"

	"github.com/hyperjump/kessan/internal/errs"
)

// Norm returns the Euclidean norm of x.
func Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// IsDegenerate reports whether x has zero magnitude (or no components).
func IsDegenerate(x []float32) bool {
	n := Norm(x)
	return n == 0 || math.IsNaN(n) || math.IsInf(n, 0)
}

// Cosine returns dot(a, b) / (|a| |b|), clamped to [-1, 1] against rounding.
// A zero-magnitude input fails with DegenerateVector.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.InvalidConfiguration("vector dimension mismatch: %d vs %d", len(a), len(b))
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 || math.IsNaN(na*nb) || math.IsInf(na*nb, 0) {
		return 0, errs.DegenerateVector("cosine similarity undefined for zero-magnitude vector")
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return math.Max(-1, math.Min(1, dot/(na*nb))), nil
}
