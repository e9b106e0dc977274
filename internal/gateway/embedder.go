package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// DashScope compatible-mode defaults. The endpoint speaks the
// OpenAI embeddings wire format.
const (
	DefaultEmbedEndpoint = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
	DefaultEmbedModel    = "text-embedding-v4"
	DefaultDimensions    = 1024

	// DefaultEmbedBatchSize is the service-side cap on texts per request.
	DefaultEmbedBatchSize = 10

	// MaxInputChars truncates overlong inputs before sending. Roughly
	// 2000 CJK characters, which is what the model's token limit allows.
	MaxInputChars = 6000

	defaultEmbedTimeout      = 30 * time.Second
	defaultEmbedBatchTimeout = 60 * time.Second
)

// Sentinel errors for the common service failures.
var (
	ErrEmptyText    = errors.New("text is empty")
	ErrUnauthorized = errors.New("embedding API key rejected")
	ErrRateLimited  = errors.New("embedding request rate limited")
)

// EmbedConfig configures the HTTP embedder.
type EmbedConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration

	// MaxRetries bounds backoff retries on rate-limited requests.
	// 0 means the default of 2; negative disables retrying.
	MaxRetries int
}

// HTTPEmbedder calls an OpenAI-compatible embeddings endpoint.
type HTTPEmbedder struct {
	client *http.Client
	config EmbedConfig
	retry  retryPolicy
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder creates an embedder with defaults applied for any zero
// config field.
func NewHTTPEmbedder(cfg EmbedConfig) *HTTPEmbedder {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEmbedEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbedModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > DefaultEmbedBatchSize {
		cfg.BatchSize = DefaultEmbedBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultEmbedTimeout
	}
	retry := defaultRetryPolicy()
	if cfg.MaxRetries < 0 {
		retry.attempts = 0
	} else if cfg.MaxRetries > 0 {
		retry.attempts = cfg.MaxRetries
	}
	return &HTTPEmbedder{
		client: &http.Client{},
		config: cfg,
		retry:  retry,
	}
}

type embedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Message string `json:"message"`
}

// Embed generates an embedding for a single text. Inputs longer than
// MaxInputChars are truncated; empty input is an error.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	vectors, err := retryOn(ctx, e.retry, isRateLimited, func() ([][]float32, error) {
		return e.call(ctx, []string{truncate(text)}, e.config.Timeout)
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("embedding response contained no vector")
	}
	e.checkDimensions(vectors[0])
	return vectors[0], nil
}

// EmbedBatch generates embeddings in service-sized batches. When a batch
// request fails, its texts are retried one by one; texts that still fail get
// an empty vector at their position so the caller can keep the rest.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))
		batch := make([]string, 0, end-start)
		for _, t := range texts[start:end] {
			batch = append(batch, truncate(t))
		}

		vectors, err := retryOn(ctx, e.retry, isRateLimited, func() ([][]float32, error) {
			return e.call(ctx, batch, defaultEmbedBatchTimeout)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("batch embedding failed, retrying items individually",
				slog.Int("batch_start", start),
				slog.String("error", err.Error()))
			vectors = e.embedOneByOne(ctx, batch)
		}
		for _, v := range vectors {
			if len(v) > 0 {
				e.checkDimensions(v)
			}
		}
		results = append(results, vectors...)
	}
	return results, nil
}

// embedOneByOne is the per-item fallback after a failed batch request.
func (e *HTTPEmbedder) embedOneByOne(ctx context.Context, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			slog.Error("embedding failed for single text",
				slog.Int("length", len(t)),
				slog.String("error", err.Error()))
			vectors[i] = nil
			continue
		}
		vectors[i] = v
	}
	return vectors
}

func (e *HTTPEmbedder) call(ctx context.Context, texts []string, timeout time.Duration) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model:          e.config.Model,
		Input:          texts,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, e.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		var parsed embedResponse
		_ = json.Unmarshal(data, &parsed)
		return nil, fmt.Errorf("embedding request rejected: %s", firstNonEmpty(parsed.Message, string(data)))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("embedding request failed: HTTP %d: %s", resp.StatusCode, data)
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(parsed.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// checkDimensions warns when the service returns a vector that deviates
// from the nominal dimension. Deviation is not fatal: cosine comparison
// against mismatched stored vectors degrades to similarity 0 per pair.
func (e *HTTPEmbedder) checkDimensions(v []float32) {
	if len(v) != e.config.Dimensions {
		slog.Warn("embedding dimension deviates from nominal",
			slog.Int("expected", e.config.Dimensions),
			slog.Int("got", len(v)),
			slog.String("model", e.config.Model))
	}
}

// Dimensions returns the nominal embedding dimension.
func (e *HTTPEmbedder) Dimensions() int { return e.config.Dimensions }

// ModelName returns the configured model identifier.
func (e *HTTPEmbedder) ModelName() string { return e.config.Model }

// Probe embeds a short test text and returns the resulting dimension.
// Used by `inkwell kb test` to verify credentials before a long ingest.
func (e *HTTPEmbedder) Probe(ctx context.Context) (int, error) {
	v, err := e.Embed(ctx, "connection probe")
	if err != nil {
		return 0, err
	}
	return len(v), nil
}

// truncate cuts text to at most MaxInputChars bytes without splitting a
// UTF-8 sequence.
func truncate(text string) string {
	if len(text) <= MaxInputChars {
		return text
	}
	cut := MaxInputChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// isRateLimited gates backoff retries: only 429s are worth waiting out.
func isRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
