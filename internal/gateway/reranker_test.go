package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rerankServer(t *testing.T, handle func(w http.ResponseWriter, req rerankRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handle(w, req)
	}))
}

func testReranker(url string) *HTTPReranker {
	return NewHTTPReranker(RerankConfig{Endpoint: url, APIKey: "test-key"})
}

func TestRerank_Success(t *testing.T) {
	srv := rerankServer(t, func(w http.ResponseWriter, req rerankRequest) {
		assert.Equal(t, DefaultRerankModel, req.Model)
		assert.Equal(t, "which fragment", req.Input.Query)
		assert.False(t, req.Parameters.ReturnDocuments)
		assert.Equal(t, 2, req.Parameters.TopN)

		var resp rerankResponse
		resp.Output.Results = append(resp.Output.Results,
			struct {
				Index          int     `json:"index"`
				RelevanceScore float64 `json:"relevance_score"`
			}{Index: 1, RelevanceScore: 0.92},
			struct {
				Index          int     `json:"index"`
				RelevanceScore float64 `json:"relevance_score"`
			}{Index: 0, RelevanceScore: 0.41},
		)
		json.NewEncoder(w).Encode(resp)
	})
	defer srv.Close()

	items, err := testReranker(srv.URL).Rerank(context.Background(),
		"which fragment", []string{"doc a", "doc b", "doc c"}, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Index)
	assert.Equal(t, 0.92, items[0].RelevanceScore)
}

func TestRerank_EmptyDocuments(t *testing.T) {
	items, err := testReranker("http://unused.invalid").Rerank(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestRerank_TopNCappedAtDocumentCount(t *testing.T) {
	srv := rerankServer(t, func(w http.ResponseWriter, req rerankRequest) {
		assert.Equal(t, 2, req.Parameters.TopN)
		var resp rerankResponse
		resp.Output.Results = []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}{}
		json.NewEncoder(w).Encode(resp)
	})
	defer srv.Close()

	_, err := testReranker(srv.URL).Rerank(context.Background(), "q", []string{"a", "b"}, 50)
	require.NoError(t, err)
}

func TestRerank_Unauthorized(t *testing.T) {
	srv := rerankServer(t, func(w http.ResponseWriter, req rerankRequest) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	_, err := testReranker(srv.URL).Rerank(context.Background(), "q", []string{"a"}, 1)
	assert.ErrorIs(t, err, ErrRerankUnauthorized)
}

func TestRerank_MalformedResponse(t *testing.T) {
	srv := rerankServer(t, func(w http.ResponseWriter, req rerankRequest) {
		json.NewEncoder(w).Encode(map[string]string{"message": "wrong shape"})
	})
	defer srv.Close()

	_, err := testReranker(srv.URL).Rerank(context.Background(), "q", []string{"a"}, 1)
	assert.ErrorContains(t, err, "malformed rerank response")
}
