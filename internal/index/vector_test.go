package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-tools/inkwell/internal/kb"
)

func TestCosineSimilarity_Identical(t *testing.T) {
	v := []float32{0.5, 0.5, 0.7}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 2}, []float32{-1, -2}), 1e-9)
}

func TestCosineSimilarity_DimensionMismatchIsZero(t *testing.T) {
	assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestCosineSimilarity_ZeroNormIsZero(t *testing.T) {
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func embeddedFragments(vectors ...[]float32) []*kb.Fragment {
	frags := make([]*kb.Fragment, len(vectors))
	for i, v := range vectors {
		frags[i] = &kb.Fragment{
			ID:        kb.FragmentID(string(rune('a'+i)), "doc.txt"),
			Content:   string(rune('a' + i)),
			Embedding: v,
		}
	}
	return frags
}

func TestVectorSearch_RanksBySimilarity(t *testing.T) {
	frags := embeddedFragments(
		[]float32{1, 0},   // similarity 0 to query
		[]float32{0, 1},   // similarity 1
		[]float32{0.5, 1}, // between
	)

	hits := VectorSearch(frags, []float32{0, 1}, 10)
	require.Len(t, hits, 3)
	assert.Equal(t, 1, hits[0].Index)
	assert.Equal(t, 2, hits[1].Index)
	assert.Equal(t, 0, hits[2].Index)
}

func TestVectorSearch_SkipsFragmentsWithoutEmbedding(t *testing.T) {
	frags := embeddedFragments([]float32{1, 0}, nil, []float32{0, 1})

	hits := VectorSearch(frags, []float32{1, 0}, 10)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.NotEqual(t, 1, h.Index)
	}
}

func TestVectorSearch_EmptyQuery(t *testing.T) {
	frags := embeddedFragments([]float32{1, 0})
	assert.Nil(t, VectorSearch(frags, nil, 10))
}

func TestVectorSearch_TopKTruncates(t *testing.T) {
	frags := embeddedFragments(
		[]float32{1, 0}, []float32{0.9, 0.1}, []float32{0.8, 0.2}, []float32{0.7, 0.3},
	)
	hits := VectorSearch(frags, []float32{1, 0}, 2)
	assert.Len(t, hits, 2)
}

func TestVectorSearch_TiesKeepFragmentOrder(t *testing.T) {
	frags := embeddedFragments([]float32{1, 0}, []float32{2, 0}, []float32{3, 0})

	hits := VectorSearch(frags, []float32{1, 0}, 10)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{hits[0].Index, hits[1].Index, hits[2].Index})
}
