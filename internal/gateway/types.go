// Package gateway holds the narrow contracts to the remote embedding and
// rerank services, plus HTTP clients for the DashScope-compatible endpoints
// the writing tool is configured against. The retrieval engine only ever
// sees the interfaces; anything network-shaped stays behind them.
package gateway

import "context"

// Embedder turns text into vectors.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts. A failed item
	// yields an empty vector at its position rather than failing the batch.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the nominal embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string
}

// RerankedItem is one entry of a rerank response. Index refers back into
// the documents slice passed to Rerank.
type RerankedItem struct {
	Index          int
	RelevanceScore float64
}

// Reranker reorders candidate documents by semantic relevance to a query.
// Failures are expected (timeouts, rate limits); callers must always be
// able to fall back to their pre-rerank order.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankedItem, error)
}
