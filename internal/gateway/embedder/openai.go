package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"council/internal/agent"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint and
// satisfies agent.Embedder. Any provider speaking the same wire format
// works (OpenAI, Qwen, local inference servers).
type OpenAIEmbedder struct {
	client  *http.Client
	apiKey  string
	baseURL string
	model   string
}

type Config struct {
	APIKey  string
	BaseURL string
	// Model defaults to text-embedding-3-small.
	Model   string
	Timeout time.Duration
}

func New(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		client:  &http.Client{Timeout: timeout},
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}, nil
}

func (e *OpenAIEmbedder) Model() string { return e.model }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, _ := json.Marshal(map[string]any{
		"model": e.model,
		"input": []string{text},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, &agent.EmbeddingError{Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &agent.EmbeddingError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		return nil, &agent.EmbeddingError{Cause: fmt.Errorf("status=%d: %s", resp.StatusCode, msg)}
	}

	var r struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, &agent.EmbeddingError{Cause: err}
	}
	if len(r.Data) == 0 {
		return nil, &agent.EmbeddingError{Cause: fmt.Errorf("empty embedding response")}
	}
	return r.Data[0].Embedding, nil
}
