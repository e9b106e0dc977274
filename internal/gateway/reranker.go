package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DashScope text-rerank defaults.
const (
	DefaultRerankEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/rerank/text-rerank/text-rerank"
	DefaultRerankModel    = "gte-rerank-v2"

	defaultRerankTimeout = 30 * time.Second
)

// ErrRerankUnauthorized is returned on a rejected rerank API key.
var ErrRerankUnauthorized = errors.New("rerank API key rejected")

// RerankConfig configures the HTTP reranker.
type RerankConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// HTTPReranker calls the DashScope text-rerank service.
type HTTPReranker struct {
	client *http.Client
	config RerankConfig
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a reranker with defaults applied for any zero
// config field.
func NewHTTPReranker(cfg RerankConfig) *HTTPReranker {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRerankEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRerankTimeout
	}
	return &HTTPReranker{
		client: &http.Client{},
		config: cfg,
	}
}

type rerankRequest struct {
	Model string `json:"model"`
	Input struct {
		Query     string   `json:"query"`
		Documents []string `json:"documents"`
	} `json:"input"`
	Parameters struct {
		ReturnDocuments bool `json:"return_documents"`
		TopN            int  `json:"top_n"`
	} `json:"parameters"`
}

type rerankResponse struct {
	Output struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	} `json:"output"`
	Message string `json:"message"`
}

// Rerank scores documents against the query and returns them sorted by
// relevance descending. topN is capped at len(documents); topN <= 0 means
// return all.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankedItem, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	var reqBody rerankRequest
	reqBody.Model = r.config.Model
	reqBody.Input.Query = query
	reqBody.Input.Documents = documents
	reqBody.Parameters.ReturnDocuments = false
	reqBody.Parameters.TopN = topN

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, r.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrRerankUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank request failed: HTTP %d: %s", resp.StatusCode, data)
	}

	var parsed rerankResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if parsed.Output.Results == nil {
		return nil, fmt.Errorf("malformed rerank response: %s", firstNonEmpty(parsed.Message, string(data)))
	}

	items := make([]RerankedItem, 0, len(parsed.Output.Results))
	for _, res := range parsed.Output.Results {
		items = append(items, RerankedItem{
			Index:          res.Index,
			RelevanceScore: res.RelevanceScore,
		})
	}
	return items, nil
}
