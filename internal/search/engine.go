package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/inkwell-tools/inkwell/internal/gateway"
	"github.com/inkwell-tools/inkwell/internal/index"
	"github.com/inkwell-tools/inkwell/internal/kb"
)

// ErrNilEmbedder is returned when an engine is constructed without an
// embedding gateway.
var ErrNilEmbedder = errors.New("nil embedder")

// ErrQueryEmbedding is returned in pure-vector mode when the query cannot
// be embedded. In hybrid mode the same failure degrades to BM25-only
// retrieval instead.
var ErrQueryEmbedding = errors.New("query embedding failed")

// Engine is the retrieval engine. It owns the BM25 index cache; the
// query-vector cache lives inside the (wrapped) embedder. Engines are safe
// for concurrent use: the parallel phase of a search only reads fragment
// lists, and both caches guard their own state.
type Engine struct {
	embedder  gateway.Embedder
	reranker  gateway.Reranker
	bm25Cache *index.BM25Cache
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithReranker sets the default rerank gateway. A per-call reranker in
// Options takes precedence.
func WithReranker(r gateway.Reranker) EngineOption {
	return func(e *Engine) { e.reranker = r }
}

// WithBM25CacheSize bounds the number of cached BM25 indexes.
func WithBM25CacheSize(n int) EngineOption {
	return func(e *Engine) { e.bm25Cache = index.NewBM25Cache(n) }
}

// New creates a retrieval engine. The embedder is wrapped with the bounded
// query-vector cache unless it is already cached.
func New(embedder gateway.Embedder, opts ...EngineOption) (*Engine, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if _, ok := embedder.(*gateway.CachedEmbedder); !ok {
		embedder = gateway.NewCachedEmbedder(embedder, gateway.QueryCacheSize)
	}
	e := &Engine{
		embedder:  embedder,
		bm25Cache: index.NewBM25Cache(index.DefaultBM25CacheSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// InvalidateIndexes drops all cached BM25 indexes. Needed only when a
// knowledge base was reloaded from disk outside the store's mutation path;
// ordinary mutations are handled by version-keyed cache entries.
func (e *Engine) InvalidateIndexes() {
	e.bm25Cache.Evict()
}

// Search runs the hybrid retrieval pipeline for query against one knowledge
// base. An empty query or an empty knowledge base yields an empty response,
// not an error. The only fatal conditions are a cancelled context and, in
// pure-vector mode (UseHybrid=false), a query that cannot be embedded.
func (e *Engine) Search(ctx context.Context, query string, k *kb.KnowledgeBase, opts Options) (*Response, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" || k == nil || len(k.Fragments) == 0 {
		return &Response{Candidates: []*Candidate{}}, nil
	}
	opts = opts.withDefaults()
	if !opts.UseHybrid {
		// Pure-vector mode: keyword search contributes nothing.
		opts.Alpha = 1
	}

	bm25Hits, vecHits, bm25Only, err := e.gather(ctx, query, k, opts)
	if err != nil {
		return nil, err
	}

	candidates := fuse(k.Fragments, bm25Hits, vecHits, opts.Alpha)
	candidates = deduplicate(candidates, DedupThreshold)
	candidates, lowConfidence := applyThreshold(candidates, opts.MinRelevanceThreshold)

	if opts.UseMMR && len(candidates) > opts.FinalTopN {
		candidates = selectMMR(candidates, opts.MMRLambda, opts.FinalTopN)
	}

	candidates = e.rerank(ctx, query, candidates, opts)

	boostRecency(candidates, k, opts.RecencyBoost)

	if len(candidates) > opts.FinalTopN {
		candidates = candidates[:opts.FinalTopN]
	}
	for _, c := range candidates {
		c.Context = assembleContext(k, c.Fragment, opts.ContextWindow)
	}

	slog.Debug("search complete",
		slog.String("kb", k.ID),
		slog.Int("results", len(candidates)),
		slog.Bool("bm25_only", bm25Only),
		slog.Bool("low_confidence", lowConfidence),
		slog.Duration("duration", time.Since(start)))

	return &Response{
		Candidates:    candidates,
		BM25Only:      bm25Only,
		LowConfidence: lowConfidence,
	}, nil
}

// gather runs the two sub-searches concurrently and joins them. Neither
// goroutine writes shared state; results land in captured locals. The
// degradation decision is made after the join:
//
//   - hybrid mode, embedding fails  -> BM25-only, flagged, not an error
//   - pure-vector mode, embedding fails -> fatal
//   - alpha 0 -> vector search skipped entirely (its weight is zero)
func (e *Engine) gather(ctx context.Context, query string, k *kb.KnowledgeBase, opts Options) (
	bm25Hits []index.Hit,
	vecHits []index.VectorHit,
	bm25Only bool,
	err error,
) {
	runBM25 := opts.Alpha < 1
	runVector := opts.Alpha > 0

	g, gctx := errgroup.WithContext(ctx)
	var embedErr error

	if runBM25 {
		g.Go(func() error {
			ix := e.bm25Cache.Get(k)
			bm25Hits = ix.Search(query, opts.BM25TopK)
			return nil
		})
	}
	if runVector {
		g.Go(func() error {
			vector, vErr := e.embedder.Embed(gctx, query)
			if vErr != nil {
				embedErr = vErr
				return nil // degradation decided after the join
			}
			vecHits = index.VectorSearch(k.Fragments, vector, opts.VectorTopK)
			return nil
		})
	}
	if gErr := g.Wait(); gErr != nil {
		return nil, nil, false, gErr
	}
	if ctx.Err() != nil {
		return nil, nil, false, ctx.Err()
	}

	if embedErr != nil {
		if !opts.UseHybrid {
			return nil, nil, false, fmt.Errorf("%w: %w", ErrQueryEmbedding, embedErr)
		}
		slog.Warn("query embedding failed, degrading to keyword-only search",
			slog.String("kb", k.ID),
			slog.String("error", embedErr.Error()))
		return bm25Hits, nil, true, nil
	}
	return bm25Hits, vecHits, false, nil
}

// applyThreshold drops candidates below a dynamic relevance threshold
// derived from the top candidate's score:
//
//	maxScore >= 0.7: threshold = max(min, 0.4*maxScore)
//	maxScore >= 0.4: threshold = max(min, 0.3*maxScore)
//	otherwise:       threshold = min
//
// A non-empty candidate set is never emptied: when nothing clears the bar,
// the top one or two candidates are kept and the response is flagged as low
// confidence.
func applyThreshold(candidates []*Candidate, minThreshold float64) ([]*Candidate, bool) {
	if len(candidates) == 0 {
		return candidates, false
	}

	maxScore := candidates[0].score()
	threshold := minThreshold
	switch {
	case maxScore >= 0.7:
		threshold = math.Max(minThreshold, maxScore*0.4)
	case maxScore >= 0.4:
		threshold = math.Max(minThreshold, maxScore*0.3)
	}

	kept := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.score() >= threshold {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		rescue := min(2, len(candidates))
		return candidates[:rescue], true
	}
	return kept, false
}

// rankStrategy is one level of the rerank degradation ladder. It returns
// the reordered candidates and whether it succeeded; a failed strategy
// hands off to the next one.
type rankStrategy struct {
	name  string
	apply func(ctx context.Context, query string, candidates []*Candidate) ([]*Candidate, bool)
}

// rerank reorders candidates through the configured rerank gateway. The
// fallback to the fused order is mandatory, not best-effort: the caller
// must always receive a usable result set, so gateway failures are logged
// and swallowed here.
func (e *Engine) rerank(ctx context.Context, query string, candidates []*Candidate, opts Options) []*Candidate {
	reranker := opts.Reranker
	if reranker == nil {
		reranker = e.reranker
	}
	if reranker == nil || len(candidates) < 2 {
		return candidates
	}

	strategies := []rankStrategy{
		{name: "rerank_gateway", apply: func(ctx context.Context, query string, cands []*Candidate) ([]*Candidate, bool) {
			return rerankWith(ctx, reranker, query, cands)
		}},
		{name: "fused_order", apply: func(_ context.Context, _ string, cands []*Candidate) ([]*Candidate, bool) {
			return cands, true
		}},
	}

	for _, s := range strategies {
		if out, ok := s.apply(ctx, query, candidates); ok {
			if s.name != "rerank_gateway" {
				slog.Debug("rerank degraded", slog.String("strategy", s.name))
			}
			return out
		}
	}
	return candidates
}

// rerankWith calls the gateway and maps its response back onto the
// candidates, setting RelevanceScore. Out-of-range indices are skipped;
// candidates the response omitted keep their fused order at the tail.
func rerankWith(ctx context.Context, reranker gateway.Reranker, query string, candidates []*Candidate) ([]*Candidate, bool) {
	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Fragment.Content
	}

	items, err := reranker.Rerank(ctx, query, documents, len(documents))
	if err != nil {
		slog.Warn("rerank gateway failed, keeping fused order",
			slog.String("error", err.Error()))
		return nil, false
	}
	if len(items) == 0 {
		return nil, false
	}

	out := make([]*Candidate, 0, len(candidates))
	seen := make(map[int]bool, len(items))
	for _, item := range items {
		if item.Index < 0 || item.Index >= len(candidates) || seen[item.Index] {
			slog.Warn("rerank response index out of range, skipping",
				slog.Int("index", item.Index))
			continue
		}
		seen[item.Index] = true
		c := candidates[item.Index]
		c.RelevanceScore = item.RelevanceScore
		c.relevanceSet = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, false
	}
	for i, c := range candidates {
		if !seen[i] {
			out = append(out, c)
		}
	}
	return out, true
}
