// Package index provides the two retrieval primitives of the engine: a BM25
// keyword index built per knowledge base, and a linear cosine-similarity
// scan over fragment embeddings. Corpus sizes are modest (thousands of
// fragments per knowledge base), so neither uses an on-disk or approximate
// structure.
package index

import (
	"math"
	"sort"

	"github.com/inkwell-tools/inkwell/internal/kb"
)

// BM25 scoring parameters.
const (
	// K1 controls term-frequency saturation.
	K1 = 1.5
	// B controls document-length normalization.
	B = 0.75
)

// BM25Index is a keyword index over one knowledge base's fragments.
// It is a pure function of the fragment list at build time and is never
// mutated afterwards, so it is safe for concurrent readers.
type BM25Index struct {
	tokens    [][]string
	termFreqs []map[string]int
	lengths   []int
	avgLen    float64
	idf       map[string]float64
	n         int
}

// Hit is a scored fragment position within the indexed fragment list.
type Hit struct {
	Index int
	Score float64
}

// BuildBM25 tokenizes all fragments and computes document frequencies and
// IDF values. Fragments without embeddings are indexed like any other:
// keyword search does not depend on vectors.
func BuildBM25(fragments []*kb.Fragment) *BM25Index {
	n := len(fragments)
	ix := &BM25Index{
		tokens:    make([][]string, n),
		termFreqs: make([]map[string]int, n),
		lengths:   make([]int, n),
		idf:       make(map[string]float64),
		n:         n,
	}

	df := make(map[string]int)
	totalLen := 0
	for i, f := range fragments {
		toks := Tokenize(f.Content)
		ix.tokens[i] = toks
		ix.lengths[i] = len(toks)
		totalLen += len(toks)

		tf := make(map[string]int, len(toks))
		for _, t := range toks {
			tf[t]++
		}
		ix.termFreqs[i] = tf
		for t := range tf {
			df[t]++
		}
	}

	if n > 0 {
		ix.avgLen = float64(totalLen) / float64(n)
	}
	for t, d := range df {
		ix.idf[t] = math.Log((float64(n)-float64(d)+0.5)/(float64(d)+0.5) + 1)
	}

	return ix
}

// Len returns the number of indexed fragments.
func (ix *BM25Index) Len() int { return ix.n }

// AvgDocLen returns the average tokenized fragment length.
func (ix *BM25Index) AvgDocLen() float64 { return ix.avgLen }

// Score computes the BM25 score of the fragment at position doc against the
// given query tokens.
func (ix *BM25Index) Score(queryTokens []string, doc int) float64 {
	if doc < 0 || doc >= ix.n || ix.lengths[doc] == 0 {
		return 0
	}
	tf := ix.termFreqs[doc]
	lenNorm := 1 - B + B*float64(ix.lengths[doc])/ix.avgLen

	var score float64
	for _, t := range queryTokens {
		f := float64(tf[t])
		if f == 0 {
			continue
		}
		score += ix.idf[t] * (f * (K1 + 1)) / (f + K1*lenNorm)
	}
	return score
}

// Search scores every fragment against the query and returns the top-K by
// score descending. Ties keep original fragment order (stable sort), so
// results are deterministic across runs.
func (ix *BM25Index) Search(query string, topK int) []Hit {
	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 || ix.n == 0 {
		return nil
	}

	hits := make([]Hit, 0, ix.n)
	for i := 0; i < ix.n; i++ {
		if s := ix.Score(queryTokens, i); s > 0 {
			hits = append(hits, Hit{Index: i, Score: s})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}
