package search

import (
	"sort"

	"github.com/inkwell-tools/inkwell/internal/index"
	"github.com/inkwell-tools/inkwell/internal/kb"
)

// RRFConstant is the standard RRF smoothing parameter. k=60 is empirically
// validated across domains (Azure AI Search, OpenSearch use the same value).
const RRFConstant = 60

// bm25ScoreDivisor normalizes raw BM25 scores into the displayable blended
// similarity score. Heuristic: typical BM25 scores for matching fragments
// land in the 0 to 10 range with character tokenization.
const bm25ScoreDivisor = 10

// fuse merges the two ranked hit lists over the same fragment slice using
// Reciprocal Rank Fusion:
//
//	rrf = alpha/(k+vectorRank) + (1-alpha)/(k+bm25Rank)
//
// A fragment absent from one list contributes 0 for that term. Alpha is the
// vector-search weight; 0 yields pure BM25 ordering and 1 pure vector
// ordering. Output is sorted by RRF descending with deterministic
// tie-breaking: presence in both lists first, then higher BM25 score, then
// original fragment order.
func fuse(fragments []*kb.Fragment, bm25 []index.Hit, vec []index.VectorHit, alpha float64) []*Candidate {
	if len(bm25) == 0 && len(vec) == 0 {
		return []*Candidate{}
	}

	byIndex := make(map[int]*Candidate, len(bm25)+len(vec))
	get := func(i int) *Candidate {
		if c, ok := byIndex[i]; ok {
			return c
		}
		c := &Candidate{Fragment: fragments[i]}
		byIndex[i] = c
		return c
	}

	for rank, h := range bm25 {
		c := get(h.Index)
		c.BM25Score = h.Score
		c.BM25Rank = rank + 1
		c.RRFScore += (1 - alpha) / float64(RRFConstant+rank+1)
	}
	for rank, h := range vec {
		c := get(h.Index)
		c.VectorScore = h.Score
		c.VectorRank = rank + 1
		c.RRFScore += alpha / float64(RRFConstant+rank+1)
	}

	order := make([]int, 0, len(byIndex))
	for i := range byIndex {
		order = append(order, i)
	}
	sort.Ints(order)

	candidates := make([]*Candidate, 0, len(order))
	for _, i := range order {
		c := byIndex[i]
		c.SimilarityScore = alpha*c.VectorScore + (1-alpha)*c.BM25Score/bm25ScoreDivisor
		candidates = append(candidates, c)
	}

	// Stable sort over fragment order gives the final deterministic
	// tie-break for free.
	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.RRFScore != cb.RRFScore {
			return ca.RRFScore > cb.RRFScore
		}
		aBoth := ca.BM25Rank > 0 && ca.VectorRank > 0
		bBoth := cb.BM25Rank > 0 && cb.VectorRank > 0
		if aBoth != bBoth {
			return aBoth
		}
		return ca.BM25Score > cb.BM25Score
	})

	return candidates
}
