package domain

import (
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// It returns 0 when either vector has zero length or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SortScored orders results by descending score, ties broken by ascending
// insertion sequence, and truncates to k when k > 0.
func SortScored(results []ScoredRecord, k int) []ScoredRecord {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.Seq < results[j].Record.Seq
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
