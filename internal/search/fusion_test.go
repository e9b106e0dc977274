package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-tools/inkwell/internal/index"
	"github.com/inkwell-tools/inkwell/internal/kb"
)

// --- helpers ---

func testFragments(n int) []*kb.Fragment {
	frags := make([]*kb.Fragment, n)
	for i := 0; i < n; i++ {
		content := "fragment content " + string(rune('A'+i))
		frags[i] = &kb.Fragment{
			ID:      kb.FragmentID(content, "doc.txt"),
			Content: content,
		}
	}
	return frags
}

func bm25Hits(pairs ...any) []index.Hit {
	hits := make([]index.Hit, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		hits = append(hits, index.Hit{Index: pairs[i].(int), Score: pairs[i+1].(float64)})
	}
	return hits
}

func vecHits(pairs ...any) []index.VectorHit {
	hits := make([]index.VectorHit, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		hits = append(hits, index.VectorHit{Index: pairs[i].(int), Score: pairs[i+1].(float64)})
	}
	return hits
}

func candidateByIndex(candidates []*Candidate, frags []*kb.Fragment, i int) *Candidate {
	for _, c := range candidates {
		if c.Fragment == frags[i] {
			return c
		}
	}
	return nil
}

// --- fusion ---

func TestFuse_EmptyInputs(t *testing.T) {
	out := fuse(testFragments(3), nil, nil, 0.7)
	assert.Empty(t, out)
}

func TestFuse_UnionOfBothLists(t *testing.T) {
	frags := testFragments(4)
	bm25 := bm25Hits(0, 3.0, 1, 2.0)
	vec := vecHits(2, 0.9, 0, 0.8)

	out := fuse(frags, bm25, vec, 0.7)
	require.Len(t, out, 3, "fragments 0, 1, 2")
}

func TestFuse_BothListsRankFirst(t *testing.T) {
	frags := testFragments(3)
	// Fragment 0 is rank 1 in both lists; the others appear once each.
	bm25 := bm25Hits(0, 3.0, 1, 2.0)
	vec := vecHits(0, 0.9, 2, 0.8)

	out := fuse(frags, bm25, vec, 0.7)
	require.NotEmpty(t, out)
	assert.Same(t, frags[0], out[0].Fragment)
}

func TestFuse_RRFContributions(t *testing.T) {
	frags := testFragments(2)
	bm25 := bm25Hits(0, 5.0)
	vec := vecHits(1, 0.9)
	alpha := 0.7

	out := fuse(frags, bm25, vec, alpha)
	require.Len(t, out, 2)

	c0 := candidateByIndex(out, frags, 0)
	c1 := candidateByIndex(out, frags, 1)
	require.NotNil(t, c0)
	require.NotNil(t, c1)

	// Missing list contributes exactly zero.
	assert.InDelta(t, (1-alpha)/float64(RRFConstant+1), c0.RRFScore, 1e-12)
	assert.InDelta(t, alpha/float64(RRFConstant+1), c1.RRFScore, 1e-12)

	// Vector-only fragment outranks BM25-only at alpha 0.7.
	assert.Same(t, frags[1], out[0].Fragment)
}

func TestFuse_AlphaOnePureVectorOrder(t *testing.T) {
	frags := testFragments(3)
	bm25 := bm25Hits(2, 9.0, 1, 8.0)
	vec := vecHits(0, 0.9, 1, 0.5)

	out := fuse(frags, bm25, vec, 1.0)
	require.Len(t, out, 3)
	assert.Same(t, frags[0], out[0].Fragment)
	assert.Same(t, frags[1], out[1].Fragment)
	// BM25-only fragment gets zero RRF at alpha 1.
	c2 := candidateByIndex(out, frags, 2)
	assert.Zero(t, c2.RRFScore)
}

func TestFuse_AlphaZeroPureBM25Order(t *testing.T) {
	frags := testFragments(3)
	bm25 := bm25Hits(2, 9.0, 0, 8.0)
	vec := vecHits(1, 0.99)

	out := fuse(frags, bm25, vec, 0.0)
	require.Len(t, out, 3)
	assert.Same(t, frags[2], out[0].Fragment)
	assert.Same(t, frags[0], out[1].Fragment)
}

func TestFuse_SimilarityScoreBlend(t *testing.T) {
	frags := testFragments(1)
	bm25 := bm25Hits(0, 4.0)
	vec := vecHits(0, 0.8)
	alpha := 0.7

	out := fuse(frags, bm25, vec, alpha)
	require.Len(t, out, 1)
	want := alpha*0.8 + (1-alpha)*4.0/10
	assert.InDelta(t, want, out[0].SimilarityScore, 1e-12)
}

func TestFuse_RanksAreOneIndexed(t *testing.T) {
	frags := testFragments(2)
	out := fuse(frags, bm25Hits(1, 3.0, 0, 2.0), vecHits(0, 0.9), 0.5)

	c0 := candidateByIndex(out, frags, 0)
	assert.Equal(t, 2, c0.BM25Rank)
	assert.Equal(t, 1, c0.VectorRank)

	c1 := candidateByIndex(out, frags, 1)
	assert.Equal(t, 1, c1.BM25Rank)
	assert.Equal(t, 0, c1.VectorRank, "absent from vector list")
}

func TestFuse_TieBreakPrefersHigherBM25(t *testing.T) {
	frags := testFragments(2)
	// Both BM25-only at alpha 0.5 with different positions would differ in
	// RRF; craft a real tie instead: same rank in opposite single lists at
	// alpha 0.5 gives identical RRF contributions.
	bm25 := bm25Hits(0, 7.0)
	vec := vecHits(1, 0.9)

	out := fuse(frags, bm25, vec, 0.5)
	require.Len(t, out, 2)
	assert.Same(t, frags[0], out[0].Fragment, "equal RRF resolves by BM25 score")
}
