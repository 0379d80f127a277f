// Package index holds the vector math and ranking rules shared by the
// VectorIndex backends.
package index

import (
	"math"
	"slices"

	"docrag/internal/domain"
)

// ScoreTolerance is the floating-point tolerance within which two
// similarity scores count as a tie.
const ScoreTolerance = 1e-6

// Dot computes the dot product of two vectors of equal dimension. Over
// L2-normalized vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Normalize returns an L2-normalized copy of v. A zero vector is
// returned unchanged.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := float32(math.Sqrt(sum))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// SortHits orders hits by descending similarity; scores within
// ScoreTolerance of each other are ties, broken by ascending insertion
// sequence. Quantizing to the tolerance grid makes this a total order,
// so the result is deterministic for a fixed index state and query.
func SortHits(hits []domain.Hit) {
	slices.SortFunc(hits, func(a, b domain.Hit) int {
		qa, qb := quantize(a.Score), quantize(b.Score)
		switch {
		case qa > qb:
			return -1
		case qa < qb:
			return 1
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})
}

func quantize(score float64) int64 {
	return int64(math.Round(score / ScoreTolerance))
}
