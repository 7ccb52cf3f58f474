// Package provider contains thin HTTP clients for the external email, push
// and AI services. Clients return raw errors (with the upstream status code
// in the message) so the engine's classifier can label them.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EmailClient sends transactional email through the relay provider's HTTP API.
type EmailClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewEmailClient(baseURL, apiKey string) *EmailClient {
	return &EmailClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Name identifies the provider in dispatch results and attempt records.
func (c *EmailClient) Name() string {
	return "email-relay"
}

type sendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendEmailResponse struct {
	ID string `json:"id"`
}

// Send delivers one email and returns the provider's message ID.
func (c *EmailClient) Send(ctx context.Context, to, subject, html string) (string, error) {
	body, err := json.Marshal(sendEmailRequest{To: to, Subject: subject, HTML: html})
	if err != nil {
		return "", fmt.Errorf("marshaling email request: %w", err)
	}

	var resp sendEmailResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/v1/emails", c.apiKey, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// postJSON executes an authenticated JSON POST and decodes the response.
// Non-2xx responses become errors carrying the status code and a truncated
// body, which is what the classifier matches on.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("provider returned %d %s: %s",
			resp.StatusCode, http.StatusText(resp.StatusCode), string(respBody))
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			msg += fmt.Sprintf(", retry-after: %s", ra)
		}
		return fmt.Errorf("%s", msg)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
