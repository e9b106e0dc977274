package index

import (
	"math"
	"sort"

	"github.com/inkwell-tools/inkwell/internal/kb"
)

// VectorHit is a cosine-similarity match against the fragment list.
type VectorHit struct {
	Index int
	Score float64
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 when the vectors differ in dimension or either norm is zero;
// a per-pair mismatch must never take down a whole search.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
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

// VectorSearch scans all fragment embeddings and returns the top-K by
// similarity descending. Fragments without an embedding are skipped.
// Ties keep original fragment order.
func VectorSearch(fragments []*kb.Fragment, query []float32, topK int) []VectorHit {
	if len(query) == 0 {
		return nil
	}

	hits := make([]VectorHit, 0, len(fragments))
	for i, f := range fragments {
		if !f.HasEmbedding() {
			continue
		}
		hits = append(hits, VectorHit{Index: i, Score: CosineSimilarity(query, f.Embedding)})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
