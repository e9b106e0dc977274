package index

import (
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/inkwell-tools/inkwell/internal/kb"
)

// DefaultBM25CacheSize bounds how many built BM25 indexes are kept.
// A writing session touches a handful of knowledge bases at most.
const DefaultBM25CacheSize = 16

// BM25Cache holds lazily built BM25 indexes keyed by knowledge base ID and
// version. Because the version is bumped on every fragment mutation, a
// stale index can never be served; the old entry simply ages out of the LRU.
//
// Concurrent first-queries for the same knowledge base may build the index
// twice. That is accepted: the index is a pure function of the fragment
// list, so the last writer wins with an identical value.
type BM25Cache struct {
	cache *lru.Cache[string, *BM25Index]
}

// NewBM25Cache creates a cache holding up to size indexes.
func NewBM25Cache(size int) *BM25Cache {
	if size <= 0 {
		size = DefaultBM25CacheSize
	}
	c, _ := lru.New[string, *BM25Index](size)
	return &BM25Cache{cache: c}
}

// Get returns the BM25 index for the knowledge base, building it on miss.
func (c *BM25Cache) Get(k *kb.KnowledgeBase) *BM25Index {
	key := fmt.Sprintf("%s@%d", k.ID, k.Version)
	if ix, ok := c.cache.Get(key); ok {
		return ix
	}

	ix := BuildBM25(k.Fragments)
	c.cache.Add(key, ix)
	slog.Debug("bm25 index built",
		slog.String("kb", k.ID),
		slog.Uint64("version", k.Version),
		slog.Int("fragments", ix.Len()))
	return ix
}

// Evict drops all cached indexes. Used when a knowledge base is reloaded
// from disk outside the store's own mutation path.
func (c *BM25Cache) Evict() {
	c.cache.Purge()
}
