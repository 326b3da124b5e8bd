package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muse-chat-api/internal/config"
)

func newTestClient(endpoint string) *Client {
	return NewClient(&config.RerankConfig{
		Endpoint: endpoint,
		APIKey:   "test-key",
		Model:    "rerank-multilingual-v3.0",
		TopN:     10,
		Timeout:  2 * time.Second,
	})
}

func TestRerankSendsRequestAndParsesResults(t *testing.T) {
	var got rerankRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.97},
				{"index": 0, "relevance_score": 0.41},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	results, err := c.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "rerank-multilingual-v3.0", got.Model)
	assert.Equal(t, "query", got.Query)
	assert.Equal(t, []string{"a", "b", "c"}, got.Documents)
	assert.Equal(t, 2, got.TopN)

	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Index)
	assert.Equal(t, 0.97, results[0].RelevanceScore)
}

func TestRerankEmptyDocumentsShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty documents")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	results, err := c.Rerank(context.Background(), "query", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRerankClampsTopNToDocumentCount(t *testing.T) {
	var got rerankRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Rerank(context.Background(), "query", []string{"a", "b"}, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TopN)
}

func TestRerankDefaultsTopNFromConfig(t *testing.T) {
	var got rerankRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.topN = 1
	_, err := c.Rerank(context.Background(), "query", []string{"a", "b", "c"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TopN)
}

func TestRerankNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid api token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Rerank(context.Background(), "query", []string{"a"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestRerankEmptyEndpoint(t *testing.T) {
	c := newTestClient("")
	_, err := c.Rerank(context.Background(), "query", []string{"a"}, 1)
	assert.Error(t, err)
}
