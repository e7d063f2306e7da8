package memory

import (
	"math"
	"sort"
)

// cosineSimilarity over float32 vectors. Zero-magnitude or mismatched
// vectors rank at -1 so they sort behind every real match.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rankRecords orders candidates by descending similarity to query, breaking
// ties by most recent CreatedAt, then ID for a total order. Returns at most k.
func rankRecords(records []Record, query []float32, k int) []Record {
	type scored struct {
		rec   Record
		score float64
	}
	ranked := make([]scored, 0, len(records))
	for _, rec := range records {
		ranked = append(ranked, scored{rec: rec, score: cosineSimilarity(rec.Embedding, query)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if !ranked[i].rec.CreatedAt.Equal(ranked[j].rec.CreatedAt) {
			return ranked[i].rec.CreatedAt.After(ranked[j].rec.CreatedAt)
		}
		return ranked[i].rec.ID < ranked[j].rec.ID
	})
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]Record, 0, k)
	for _, s := range ranked[:k] {
		out = append(out, s.rec)
	}
	return out
}
