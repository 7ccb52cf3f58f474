package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/plateshare/comms-service/internal/engine"
)

func TestEmailClient_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/emails" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write([]byte(`{"id":"msg-123"}`))
	}))
	defer srv.Close()

	client := NewEmailClient(srv.URL, "test-key")
	id, err := client.Send(context.Background(), "a@example.com", "Hi", "<p>Hi</p>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "msg-123" {
		t.Errorf("expected msg-123, got %q", id)
	}
}

func TestEmailClient_RateLimitErrorIsClassifiable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "15")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit exceeded"}`))
	}))
	defer srv.Close()

	client := NewEmailClient(srv.URL, "test-key")
	_, err := client.Send(context.Background(), "a@example.com", "Hi", "<p>Hi</p>")
	if err == nil {
		t.Fatal("expected error")
	}

	c := engine.Classify(err)
	if !c.IsRateLimit {
		t.Errorf("expected rate-limit classification for %q", err)
	}
	if c.RetryAfter.Seconds() != 15 {
		t.Errorf("expected retry-after 15s, got %s", c.RetryAfter)
	}
}

func TestPushClient_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewPushClient(srv.URL, "test-key")
	_, err := client.Send(context.Background(), "tok", "ios", "t", "b", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !engine.Classify(err).ShouldRetry {
		t.Errorf("503 should classify retryable, got %q", err)
	}
}

func TestAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"text":"three subject lines"}`))
	}))
	defer srv.Close()

	client := NewAIClient(srv.URL, "test-key", "insight-1")
	text, err := client.Complete(context.Background(), "suggest subjects")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "three subject lines" {
		t.Errorf("unexpected completion %q", text)
	}
}

func TestAIClient_UnauthorizedIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	client := NewAIClient(srv.URL, "bad-key", "insight-1")
	_, err := client.Complete(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}

	c := engine.Classify(err)
	if !c.IsPermanent || c.ShouldRetry {
		t.Errorf("401 should classify permanent, got %+v for %q", c, err)
	}
}
