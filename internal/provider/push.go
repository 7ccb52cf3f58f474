package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PushClient sends mobile push notifications through the push gateway.
type PushClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewPushClient(baseURL, apiKey string) *PushClient {
	return &PushClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func (c *PushClient) Name() string {
	return "push-gateway"
}

type sendPushRequest struct {
	DeviceToken string            `json:"device_token"`
	Platform    string            `json:"platform"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

type sendPushResponse struct {
	ID string `json:"id"`
}

// Send delivers one push notification and returns the gateway's message ID.
func (c *PushClient) Send(ctx context.Context, deviceToken, platform, title, body string, data map[string]string) (string, error) {
	payload, err := json.Marshal(sendPushRequest{
		DeviceToken: deviceToken,
		Platform:    platform,
		Title:       title,
		Body:        body,
		Data:        data,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling push request: %w", err)
	}

	var resp sendPushResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/v1/push", c.apiKey, payload, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}
