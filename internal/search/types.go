// Package search implements the hybrid retrieval pipeline: BM25 and vector
// sub-searches run concurrently, merge through Reciprocal Rank Fusion, and
// the fused candidates pass through near-duplicate suppression, a dynamic
// relevance threshold, optional MMR diversity selection, optional semantic
// reranking, recency boosting, and finally context assembly.
package search

import "github.com/inkwell-tools/inkwell/internal/kb"

// Candidate is one retrieved fragment with every score the pipeline
// produced for it. Candidates are transient: built per Search call, never
// persisted.
type Candidate struct {
	Fragment *kb.Fragment

	// VectorScore is the cosine similarity from the vector scan
	// (0 when the fragment did not appear in vector results).
	VectorScore float64

	// BM25Score is the raw keyword score
	// (0 when the fragment did not appear in BM25 results).
	BM25Score float64

	// VectorRank and BM25Rank are 1-indexed positions in the respective
	// ranked lists, 0 when absent.
	VectorRank int
	BM25Rank   int

	// RRFScore is the fused rank score the pipeline sorts by.
	RRFScore float64

	// SimilarityScore is the displayable blended score
	// (alpha*vector + (1-alpha)*bm25/10). Heuristic, not a probability.
	SimilarityScore float64

	// RelevanceScore is set by the reranker. relevanceSet records that it
	// was, since a reranker may legitimately score a document 0.
	RelevanceScore float64
	relevanceSet   bool

	// BoostedScore is the final score after recency boosting.
	BoostedScore float64

	// Context is the fragment content expanded with its neighbors from the
	// same source document.
	Context string
}

// score is the candidate's best available relevance estimate: the reranker
// score once set, otherwise the blended similarity score.
func (c *Candidate) score() float64 {
	if c.relevanceSet {
		return c.RelevanceScore
	}
	return c.SimilarityScore
}

// Response is the result of one Search call.
type Response struct {
	Candidates []*Candidate

	// BM25Only is set when the query could not be embedded and the search
	// degraded to keyword-only retrieval.
	BM25Only bool

	// LowConfidence is set when no candidate cleared the relevance
	// threshold and the top candidates were kept regardless.
	LowConfidence bool
}
