package search

import (
	"sort"
	"strings"

	"github.com/inkwell-tools/inkwell/internal/kb"
)

// assembleContext expands a fragment with up to window neighbors on each
// side from the same source document, concatenated in source order. When the
// target cannot be located among its siblings, which can happen if the
// knowledge base was mutated between ranking and assembly, the fragment's
// own content is returned.
func assembleContext(k *kb.KnowledgeBase, target *kb.Fragment, window int) string {
	if window <= 0 {
		return target.Content
	}

	siblings := make([]*kb.Fragment, 0, target.TotalChunks)
	for _, f := range k.Fragments {
		if f.SourcePath == target.SourcePath {
			siblings = append(siblings, f)
		}
	}
	sort.SliceStable(siblings, func(a, b int) bool {
		return siblings[a].ChunkIndex < siblings[b].ChunkIndex
	})

	at := -1
	for i, f := range siblings {
		if f.ID == target.ID {
			at = i
			break
		}
	}
	if at == -1 {
		return target.Content
	}

	start := max(at-window, 0)
	end := min(at+window+1, len(siblings))

	parts := make([]string, 0, end-start)
	for _, f := range siblings[start:end] {
		parts = append(parts, f.Content)
	}
	return strings.Join(parts, "\n")
}
