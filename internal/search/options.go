package search

import "github.com/inkwell-tools/inkwell/internal/gateway"

// Pipeline defaults.
const (
	DefaultTopK          = 20
	DefaultAlpha         = 0.7
	DefaultMMRLambda     = 0.7
	DefaultFinalTopN     = 5
	DefaultMinThreshold  = 0.25
	DefaultRecencyBoost  = 0.3
	DefaultContextWindow = 2
)

// Options configures a single Search call. Use DefaultOptions as the
// starting point: the zero value means pure-vector mode with no recency
// boost, which is almost never what a caller wants.
type Options struct {
	// VectorTopK and BM25TopK are the candidate counts requested from each
	// sub-search before fusion (default 20 each).
	VectorTopK int
	BM25TopK   int

	// Alpha is the vector-search weight in RRF fusion, 0..1.
	// 0 is pure BM25, 1 is pure vector (default 0.7).
	Alpha float64

	// UseHybrid allows degradation to BM25-only retrieval when the query
	// cannot be embedded. When false, an embedding failure is fatal to the
	// call (pure-vector mode).
	UseHybrid bool

	// UseMMR enables maximal-marginal-relevance diversity selection.
	UseMMR bool

	// MMRLambda balances relevance against diversity (default 0.7).
	// 0 is pure diversity, 1 pure relevance.
	MMRLambda float64

	// MMRLambdaSet distinguishes an explicit 0 (pure diversity) from an
	// unset field, since 0 is a meaningful value here.
	MMRLambdaSet bool

	// FinalTopN is the number of candidates returned (default 5).
	FinalTopN int

	// MinRelevanceThreshold is the floor of the dynamic threshold filter
	// (default 0.25).
	MinRelevanceThreshold float64

	// RecencyBoost scales the corpus-position boost; 0 disables boosting.
	RecencyBoost float64

	// ContextWindow is the number of neighboring fragments included on each
	// side during context assembly (default 2).
	ContextWindow int

	// RecencyBoostSet distinguishes an explicit 0 (boost disabled) from an
	// unset field, since 0 is a meaningful value here.
	RecencyBoostSet bool

	// Reranker, when non-nil, overrides the engine's default rerank
	// gateway for this call.
	Reranker gateway.Reranker
}

// DefaultOptions returns the options used by the writing tool's default
// retrieval path.
func DefaultOptions() Options {
	return Options{
		VectorTopK:            DefaultTopK,
		BM25TopK:              DefaultTopK,
		Alpha:                 DefaultAlpha,
		UseHybrid:             true,
		UseMMR:                false,
		MMRLambda:             DefaultMMRLambda,
		MMRLambdaSet:          true,
		FinalTopN:             DefaultFinalTopN,
		MinRelevanceThreshold: DefaultMinThreshold,
		RecencyBoost:          DefaultRecencyBoost,
		RecencyBoostSet:       true,
		ContextWindow:         DefaultContextWindow,
	}
}

// withDefaults fills unset numeric fields. Alpha and MMRLambda are clamped
// to [0,1].
func (o Options) withDefaults() Options {
	if o.VectorTopK <= 0 {
		o.VectorTopK = DefaultTopK
	}
	if o.BM25TopK <= 0 {
		o.BM25TopK = DefaultTopK
	}
	if o.Alpha < 0 {
		o.Alpha = 0
	}
	if o.Alpha > 1 {
		o.Alpha = 1
	}
	if o.MMRLambda < 0 {
		o.MMRLambda = 0
	}
	if o.MMRLambda > 1 {
		o.MMRLambda = 1
	}
	if !o.MMRLambdaSet && o.MMRLambda == 0 {
		o.MMRLambda = DefaultMMRLambda
	}
	if o.FinalTopN <= 0 {
		o.FinalTopN = DefaultFinalTopN
	}
	if o.MinRelevanceThreshold <= 0 {
		o.MinRelevanceThreshold = DefaultMinThreshold
	}
	if !o.RecencyBoostSet && o.RecencyBoost == 0 {
		o.RecencyBoost = DefaultRecencyBoost
	}
	if o.ContextWindow <= 0 {
		o.ContextWindow = DefaultContextWindow
	}
	return o
}
