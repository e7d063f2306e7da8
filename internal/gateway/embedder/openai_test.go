package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"council/internal/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedRoundtrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		require.Len(t, req.Input, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}, "index": 0},
			},
		})
	}))
	defer srv.Close()

	e, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", e.Model())

	vec, err := e.Embed(context.Background(), "today's market looks flat")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	var embErr *agent.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Contains(t, embErr.Error(), "quota exceeded")
}

func TestMissingAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
