package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-tools/inkwell/internal/kb"
)

func candidatesFrom(contents ...string) []*Candidate {
	out := make([]*Candidate, len(contents))
	for i, c := range contents {
		out[i] = &Candidate{Fragment: &kb.Fragment{
			ID:      kb.FragmentID(c, "doc.txt"),
			Content: c,
		}}
	}
	return out
}

func TestDeduplicate_EmptyAndSingle(t *testing.T) {
	assert.Empty(t, deduplicate(nil, DedupThreshold))

	one := candidatesFrom("only one")
	assert.Equal(t, one, deduplicate(one, DedupThreshold))
}

func TestDeduplicate_ExactDuplicateDropped(t *testing.T) {
	cands := candidatesFrom(
		"the knight rode north",
		"the knight rode north",
		"a merchant came from the south",
	)

	out := deduplicate(cands, DedupThreshold)
	require.Len(t, out, 2)
	assert.Same(t, cands[0], out[0], "highest-ranked duplicate survives")
	assert.Same(t, cands[2], out[1])
}

func TestDeduplicate_ReorderedCharactersAreDuplicates(t *testing.T) {
	// Character-set similarity ignores ordering entirely.
	cands := candidatesFrom(
		"abcdefghij",
		"jihgfedcba",
	)
	out := deduplicate(cands, DedupThreshold)
	assert.Len(t, out, 1)
}

func TestDeduplicate_DistinctContentKept(t *testing.T) {
	cands := candidatesFrom(
		"winter settled over the valley",
		"the harbor buzzed with foreign sails",
		"an old map, half burned, told of a vault",
	)
	out := deduplicate(cands, DedupThreshold)
	assert.Len(t, out, 3)
}

func TestDeduplicate_BelowThresholdKept(t *testing.T) {
	// Overlap of 8 chars out of 12 union = 0.67, below 0.85.
	cands := candidatesFrom(
		"abcdefgh",
		"abcdefghijkl",
	)
	out := deduplicate(cands, 0.85)
	assert.Len(t, out, 2)
}

func TestJaccard_EdgeCases(t *testing.T) {
	assert.Equal(t, 1.0, jaccard(runeSet(""), runeSet("")), "two empty sets are identical")
	assert.Equal(t, 0.0, jaccard(runeSet(""), runeSet("abc")))
	assert.Equal(t, 1.0, jaccard(runeSet("aabbcc"), runeSet("abc")), "multiplicity ignored")
	assert.InDelta(t, 0.5, jaccard(runeSet("abc"), runeSet("bcd")), 1e-9)
}
