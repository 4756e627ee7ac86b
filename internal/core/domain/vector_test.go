package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scale invariant", []float32{1, 1}, []float32{3, 3}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSortScored(t *testing.T) {
	rec := func(id string, seq int64, score float64) ScoredRecord {
		return ScoredRecord{Record: IndexRecord{ID: id, Seq: seq}, Score: score}
	}
	in := []ScoredRecord{rec("c", 3, 0.5), rec("a", 1, 0.9), rec("d", 4, 0.9), rec("b", 2, 0.5)}

	got := SortScored(in, 3)

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.Record.ID
	}
	assert.Equal(t, []string{"a", "d", "b"}, ids)
	assert.Len(t, SortScored(nil, 3), 0)
}
