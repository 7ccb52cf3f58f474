package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AIClient calls the AI completion endpoint. It carries no retry or breaker
// logic of its own; callers wrap it in the engine's rate-limited executor.
type AIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewAIClient(baseURL, apiKey, model string) *AIClient {
	return &AIClient{
		// The executor enforces the per-attempt timeout via context; keep the
		// transport timeout above it so the context always fires first.
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

type completionRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Text string `json:"text"`
}

// Complete sends a prompt and returns the model's text output.
func (c *AIClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:     c.model,
		Prompt:    prompt,
		MaxTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling completion request: %w", err)
	}

	var resp completionResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/v1/completions", c.apiKey, body, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}
