package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopKRanksByCosine(t *testing.T) {
	query := []float32{1, 0, 0}
	records := []VectorRecord{
		{ID: "far", Kind: "note", Vector: []float32{0, 1, 0}},
		{ID: "near", Kind: "task", Vector: []float32{1, 0.1, 0}},
		{ID: "exact", Kind: "note", Vector: []float32{2, 0, 0}},
	}

	got := TopK(query, records, 5)
	require.Len(t, got, 3)
	assert.Equal(t, "exact", got[0].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, "near", got[1].ID)
	assert.Equal(t, "far", got[2].ID)
}

func TestTopKSkipsMismatchedDimensions(t *testing.T) {
	query := []float32{1, 0, 0}
	records := []VectorRecord{
		{ID: "short", Vector: []float32{1, 0}},
		{ID: "ok", Vector: []float32{1, 0, 0}},
		{ID: "long", Vector: []float32{1, 0, 0, 0}},
	}

	got := TopK(query, records, 5)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ID)
}

func TestTopKTiesKeepInputOrder(t *testing.T) {
	query := []float32{1, 0}
	records := []VectorRecord{
		{ID: "first", Vector: []float32{1, 0}},
		{ID: "second", Vector: []float32{2, 0}},
	}

	got := TopK(query, records, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "second", got[1].ID)
}

func TestTopKTruncatesToK(t *testing.T) {
	query := []float32{1}
	records := make([]VectorRecord, 10)
	for i := range records {
		records[i] = VectorRecord{ID: string(rune('a' + i)), Vector: []float32{1}}
	}

	assert.Len(t, TopK(query, records, 5), 5)
}

func TestTopKEmptyAfterFiltering(t *testing.T) {
	query := []float32{1, 0}
	records := []VectorRecord{
		{ID: "bad", Vector: []float32{1}},
	}

	assert.Empty(t, TopK(query, records, 5))
	assert.Empty(t, TopK(query, nil, 5))
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
