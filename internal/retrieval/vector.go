package retrieval

import (
	"math"
	"sort"
)

// DefaultTopK is the number of nearest neighbors returned by similarity
// search unless the caller asks for fewer.
const DefaultTopK = 5

// VectorRecord is a stored embedding scoped to one owner.
type VectorRecord struct {
	ID     string
	Kind   string
	Vector []float32
}

// Scored is a record with its similarity to the query.
type Scored struct {
	ID    string
	Kind  string
	Score float64
}

// TopK ranks records by cosine similarity to the query vector and
// returns the top k. Records whose vector length differs from the query
// are excluded before scoring. Ties keep original input order.
func TopK(query []float32, records []VectorRecord, k int) []Scored {
	if k <= 0 || len(query) == 0 {
		return nil
	}

	scored := make([]Scored, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) != len(query) {
			continue
		}
		scored = append(scored, Scored{
			ID:    rec.ID,
			Kind:  rec.Kind,
			Score: cosineSimilarity(query, rec.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// cosineSimilarity accumulates in float64 to keep precision over long
// float32 vectors.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
