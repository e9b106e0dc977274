package search

// DedupThreshold is the character-set Jaccard similarity above which two
// fragments count as near-duplicates.
const DedupThreshold = 0.85

// deduplicate walks candidates in rank order and drops any candidate whose
// content is a near-duplicate of an already-kept one. The highest-ranked of
// a duplicate group always survives.
func deduplicate(candidates []*Candidate, threshold float64) []*Candidate {
	if len(candidates) <= 1 {
		return candidates
	}

	kept := make([]*Candidate, 0, len(candidates))
	keptSets := make([]map[rune]struct{}, 0, len(candidates))

	for _, c := range candidates {
		set := runeSet(c.Fragment.Content)
		dup := false
		for _, ks := range keptSets {
			if jaccard(set, ks) >= threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
			keptSets = append(keptSets, set)
		}
	}
	return kept
}

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}

// jaccard computes |A∩B| / |A∪B| over unique characters.
func jaccard(a, b map[rune]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for r := range small {
		if _, ok := large[r]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
