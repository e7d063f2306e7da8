package provider

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

func chatServer(t *testing.T, reply string, wantModel string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if wantModel != "" {
			assert.Equal(t, wantModel, req.Model)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": reply}},
			},
		})
	}))
}

func TestTierRouting(t *testing.T) {
	quickSrv := chatServer(t, "quick answer", "small-model")
	defer quickSrv.Close()
	deepSrv := chatServer(t, "deep answer", "big-model")
	defer deepSrv.Close()

	quick := &ChatClient{BaseURL: quickSrv.URL, Model: "small-model"}
	deep := &ChatClient{BaseURL: deepSrv.URL, Model: "big-model"}
	inv, err := NewTierInvoker(quick, deep)
	require.NoError(t, err)

	out, err := inv.Invoke(context.Background(), agent.Request{Role: agent.RoleMarketAnalyst, Tier: agent.TierQuick})
	require.NoError(t, err)
	assert.Equal(t, "quick answer", out)

	out, err = inv.Invoke(context.Background(), agent.Request{Role: agent.RolePortfolioManager, Tier: agent.TierDeep})
	require.NoError(t, err)
	assert.Equal(t, "deep answer", out)
}

func TestDeepFallsBackToQuick(t *testing.T) {
	srv := chatServer(t, "only answer", "")
	defer srv.Close()

	inv, err := NewTierInvoker(&ChatClient{BaseURL: srv.URL, Model: "m"}, nil)
	require.NoError(t, err)
	out, err := inv.Invoke(context.Background(), agent.Request{Role: agent.RoleTrader, Tier: agent.TierDeep})
	require.NoError(t, err)
	assert.Equal(t, "only answer", out)
}

func TestInvocationErrorCarriesRole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"no such model"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	inv, err := NewTierInvoker(&ChatClient{BaseURL: srv.URL, Model: "m"}, nil)
	require.NoError(t, err)
	_, err = inv.Invoke(context.Background(), agent.Request{Role: agent.RoleBearResearcher, Tier: agent.TierQuick})
	require.Error(t, err)

	var invErr *agent.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, agent.RoleBearResearcher, invErr.Role)
	assert.Contains(t, invErr.Error(), "no such model")
}

func TestRetryOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "recovered"}}},
		})
	}))
	defer srv.Close()

	client := &ChatClient{BaseURL: srv.URL, Model: "m"}
	out, err := client.Complete(context.Background(), "", "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 2, attempts)
}

func TestEndpointNormalization(t *testing.T) {
	c := &ChatClient{BaseURL: "https://api.example.com/v1/chat/completions/"}
	assert.Equal(t, "https://api.example.com/v1/chat/completions", c.endpoint())
	c = &ChatClient{BaseURL: "https://api.example.com/v1"}
	assert.Equal(t, "https://api.example.com/v1/chat/completions", c.endpoint())
}

func TestQuickClientRequired(t *testing.T) {
	_, err := NewTierInvoker(nil, nil)
	assert.Error(t, err)
}
