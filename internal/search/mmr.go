package search

import "github.com/inkwell-tools/inkwell/internal/index"

// selectMMR performs greedy maximal-marginal-relevance selection: each step
// picks the candidate maximizing
//
//	lambda*relevance - (1-lambda)*maxSimilarityToSelected
//
// where similarity is cosine similarity of fragment embeddings. Candidates
// without embeddings have similarity 0 to everything: never penalized,
// never excluded. Ties go to the earlier candidate in rank order, so
// selection is deterministic. Relevance is the candidate's current best
// score (reranker score if set, blended similarity otherwise).
func selectMMR(candidates []*Candidate, lambda float64, count int) []*Candidate {
	if count <= 0 || len(candidates) <= count {
		return candidates
	}
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}

	selected := make([]*Candidate, 0, count)
	remaining := make([]*Candidate, len(candidates))
	copy(remaining, candidates)

	for len(selected) < count && len(remaining) > 0 {
		bestIdx := 0
		bestScore := mmrScore(remaining[0], selected, lambda)
		for i := 1; i < len(remaining); i++ {
			if s := mmrScore(remaining[i], selected, lambda); s > bestScore {
				bestIdx, bestScore = i, s
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func mmrScore(c *Candidate, selected []*Candidate, lambda float64) float64 {
	maxSim := 0.0
	if c.Fragment.HasEmbedding() {
		for _, s := range selected {
			if !s.Fragment.HasEmbedding() {
				continue
			}
			if sim := index.CosineSimilarity(c.Fragment.Embedding, s.Fragment.Embedding); sim > maxSim {
				maxSim = sim
			}
		}
	}
	return lambda*c.score() - (1-lambda)*maxSim
}
