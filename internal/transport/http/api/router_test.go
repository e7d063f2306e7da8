package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"council/internal/agent"
	"council/internal/graph"
	"council/internal/memory"
	"council/internal/prompt"
	"council/internal/store/runlog"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type holdInvoker struct{}

func (holdInvoker) Invoke(_ context.Context, req agent.Request) (string, error) {
	return fmt.Sprintf("%s:%s says HOLD", req.Role, req.Tier), nil
}

type histEmbedder struct{}

func (histEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i := 0; i < len(text); i++ {
		vec[int(text[i])%8]++
	}
	return vec, nil
}

func (histEmbedder) Model() string { return "stub-embed-v1" }

func newTestRouter(t *testing.T) (*gin.Engine, memory.Store) {
	t.Helper()
	store, err := memory.NewChromemStore(histEmbedder{})
	require.NoError(t, err)
	prompts, err := prompt.NewManager("")
	require.NoError(t, err)
	runs, err := runlog.New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { runs.Close() })

	g := graph.New(graph.Config{MaxDebateRounds: 1, MaxRiskRounds: 1}, holdInvoker{}, prompts, store, nil, runs)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewRouter(g, store, runs).Register(engine.Group("/api"))
	return engine, store
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestPropagateEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/runs", map[string]any{
		"symbols": []string{"NVDA", "AMD"},
		"date":    "2024-05-10",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Date    string `json:"date"`
		Results []struct {
			RunID  string `json:"run_id"`
			Symbol string `json:"symbol"`
			Action string `json:"action"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2024-05-10", resp.Date)
	require.Len(t, resp.Results, 2)
	for _, res := range resp.Results {
		assert.Equal(t, "HOLD", res.Action)
		assert.NotEmpty(t, res.RunID)
	}
}

func TestPropagateValidation(t *testing.T) {
	engine, _ := newTestRouter(t)
	rec := doJSON(t, engine, http.MethodPost, "/api/runs", map[string]any{"date": "2024-05-10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReflectEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/runs", map[string]any{
		"symbol": "NVDA", "date": "2024-05-10",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/api/reflect", map[string]any{
		"symbol": "NVDA", "return": 0.12,
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Once resolved, a second reflection conflicts.
	rec = doJSON(t, engine, http.MethodPost, "/api/reflect", map[string]any{
		"symbol": "NVDA", "return": -0.5,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReflectWithoutRecords(t *testing.T) {
	engine, _ := newTestRouter(t)
	rec := doJSON(t, engine, http.MethodPost, "/api/reflect", map[string]any{
		"symbol": "NVDA", "return": 0.12,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMemorySearchEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/runs", map[string]any{
		"symbol": "NVDA", "date": "2024-05-10",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/memory?q=market+outlook&k=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Hits []memoryHit `json:"hits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "NVDA", resp.Hits[0].Symbol)
	assert.Equal(t, "HOLD", resp.Hits[0].Action)

	rec = doJSON(t, engine, http.MethodGet, "/api/memory", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunHistoryEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)

	rec := doJSON(t, engine, http.MethodPost, "/api/runs", map[string]any{
		"symbol": "NVDA", "date": "2024-05-10",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, engine, http.MethodGet, "/api/runs?symbol=NVDA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Runs []runlog.Record `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "NVDA", resp.Runs[0].Symbol)
	assert.Equal(t, "HOLD", resp.Runs[0].Action)
}
