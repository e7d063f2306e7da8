package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"council/internal/logger"
)

// ChatClient talks to an OpenAI-compatible /chat/completions endpoint
// (OpenAI, DeepSeek, Qwen, local gateways).
type ChatClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// Retries for 429/5xx responses. Zero means the default of 2.
	MaxRetries   int
	Temperature  float64
	ExtraHeaders map[string]string
}

func (c *ChatClient) endpoint() string {
	url := c.BaseURL
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	// Tolerate configs that already carry the full path.
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

// Complete sends a system+user message pair and returns the first choice.
func (c *ChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	url := c.endpoint()

	messages := []map[string]string{}
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})

	temperature := c.Temperature
	if temperature == 0 {
		temperature = 0.5
	}
	body, _ := json.Marshal(map[string]any{
		"model":       c.Model,
		"messages":    messages,
		"temperature": temperature,
	})

	httpc := &http.Client{Timeout: timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt == 0 {
			logger.Debugf("model request: POST %s model=%s bytes=%d", url, c.Model, len(body))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
		for k, v := range c.ExtraHeaders {
			req.Header.Set(k, v)
		}

		resp, err := httpc.Do(req)
		if err != nil {
			return "", err
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", derr
			}
			if len(r.Choices) == 0 {
				return "", fmt.Errorf("empty choices")
			}
			return r.Choices[0].Message.Content, nil
		}

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
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)

		if retriable(resp.StatusCode) && attempt < maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"), attempt)
			resp.Body.Close()
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		resp.Body.Close()
		break
	}
	return "", lastErr
}

func retriable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryAfter(header string, attempt int) time.Duration {
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	wait := 800 * time.Millisecond << attempt
	if wait > 8*time.Second {
		wait = 8 * time.Second
	}
	return wait
}
