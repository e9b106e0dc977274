package search

import (
	"math"
	"sort"

	"github.com/inkwell-tools/inkwell/internal/kb"
)

// recencyExponent shapes the position weight curve: sublinear, so mid-corpus
// fragments still get a meaningful share of the boost.
const recencyExponent = 0.7

// boostRecency rescales candidate scores by corpus position. A fragment
// later in the knowledge base's fragment list is "more recent" in the story
// and gets boosted:
//
//	boosted = score * (1 + (pos/total)^0.7 * strength)
//
// strength 0 disables boosting (scores pass through, order untouched).
// A candidate whose fragment is missing from the knowledge base list passes
// through unboosted. Re-sorts by boosted score, stable on ties.
func boostRecency(candidates []*Candidate, k *kb.KnowledgeBase, strength float64) {
	if strength == 0 || len(candidates) == 0 {
		for _, c := range candidates {
			c.BoostedScore = c.score()
		}
		return
	}

	positions := k.Positions()
	total := float64(len(k.Fragments))

	for _, c := range candidates {
		c.BoostedScore = c.score()
		pos, ok := positions[c.Fragment.ID]
		if !ok || total == 0 {
			continue
		}
		weight := math.Pow(float64(pos)/total, recencyExponent)
		c.BoostedScore *= 1 + weight*strength
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].BoostedScore > candidates[b].BoostedScore
	})
}
