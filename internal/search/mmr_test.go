package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-tools/inkwell/internal/kb"
)

func scoredCandidate(id string, score float64, embedding []float32) *Candidate {
	return &Candidate{
		Fragment: &kb.Fragment{
			ID:        id,
			Content:   id,
			Embedding: embedding,
		},
		SimilarityScore: score,
	}
}

func TestSelectMMR_NoSelectionWhenUnderCount(t *testing.T) {
	cands := []*Candidate{
		scoredCandidate("a", 0.9, []float32{1, 0}),
		scoredCandidate("b", 0.8, []float32{0, 1}),
	}
	assert.Equal(t, cands, selectMMR(cands, 0.7, 5))
	assert.Equal(t, cands, selectMMR(cands, 0.7, 2))
	assert.Equal(t, cands, selectMMR(cands, 0.7, 0))
}

func TestSelectMMR_LambdaOneIsPureRelevance(t *testing.T) {
	cands := []*Candidate{
		scoredCandidate("a", 0.9, []float32{1, 0}),
		scoredCandidate("b", 0.85, []float32{1, 0.01}), // near-identical to a
		scoredCandidate("c", 0.2, []float32{0, 1}),
	}

	out := selectMMR(cands, 1.0, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Fragment.ID)
	assert.Equal(t, "b", out[1].Fragment.ID, "diversity ignored at lambda 1")
}

func TestSelectMMR_LambdaZeroIsPureDiversity(t *testing.T) {
	cands := []*Candidate{
		scoredCandidate("a", 0.9, []float32{1, 0}),
		scoredCandidate("b", 0.85, []float32{1, 0.001}), // redundant with a
		scoredCandidate("c", 0.1, []float32{0, 1}),      // orthogonal, low score
	}

	out := selectMMR(cands, 0, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Fragment.ID)
	assert.Equal(t, "c", out[1].Fragment.ID, "relevance ignored at lambda 0")
}

func TestSelectMMR_DiversityPenalizesNearDuplicates(t *testing.T) {
	cands := []*Candidate{
		scoredCandidate("a", 0.9, []float32{1, 0}),
		scoredCandidate("b", 0.85, []float32{1, 0.001}), // redundant with a
		scoredCandidate("c", 0.5, []float32{0, 1}),      // orthogonal
	}

	out := selectMMR(cands, 0.5, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Fragment.ID)
	assert.Equal(t, "c", out[1].Fragment.ID, "diverse candidate beats redundant one")
}

func TestSelectMMR_MissingEmbeddingNeverPenalized(t *testing.T) {
	cands := []*Candidate{
		scoredCandidate("a", 0.9, []float32{1, 0}),
		scoredCandidate("b", 0.6, nil), // no embedding
		scoredCandidate("c", 0.59, []float32{1, 0.001}),
	}

	out := selectMMR(cands, 0.5, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Fragment.ID)
	assert.Equal(t, "b", out[1].Fragment.ID,
		"embedding-less candidate has zero similarity to the selected set")
}

func TestSelectMMR_RerankScoreUsedAsRelevance(t *testing.T) {
	a := scoredCandidate("a", 0.2, []float32{1, 0})
	a.RelevanceScore = 0.95
	a.relevanceSet = true
	b := scoredCandidate("b", 0.9, []float32{0, 1})

	out := selectMMR([]*Candidate{a, b, scoredCandidate("c", 0.1, []float32{0.5, 0.5})}, 1.0, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Fragment.ID, "reranker score overrides similarity")
}

func TestSelectMMR_TieGoesToEarlierCandidate(t *testing.T) {
	cands := []*Candidate{
		scoredCandidate("a", 0.5, []float32{1, 0}),
		scoredCandidate("b", 0.5, []float32{0, 1}),
		scoredCandidate("c", 0.5, []float32{0.5, 0.5}),
	}

	out := selectMMR(cands, 1.0, 1)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Fragment.ID)
}
