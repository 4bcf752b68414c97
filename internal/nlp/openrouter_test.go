package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"autodialer/internal/config"
	"autodialer/internal/dialer"
)

func TestStripCodeFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"action":"none"}`, `{"action":"none"}`},
		{"```json\n{\"action\":\"none\"}\n```", `{"action":"none"}`},
		{"```\n{}\n```", "{}"},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, c := range cases {
		if got := stripCodeFences(c.in); got != c.want {
			t.Fatalf("stripCodeFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestParseCommand(t *testing.T) {
	srv := completionServer(t, "```json\n{\"action\":\"make_call\",\"phone_numbers\":[\"+12025550001\"]}\n```")
	defer srv.Close()

	c := NewClient(config.OpenRouterConfig{APIKey: "k", Model: "test-model", BaseURL: srv.URL})
	intent, err := c.ParseCommand(context.Background(), "call +12025550001")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if intent.Action != dialer.ActionMakeCall {
		t.Fatalf("unexpected action: %q", intent.Action)
	}
	if len(intent.PhoneNumbers) != 1 || intent.PhoneNumbers[0] != "+12025550001" {
		t.Fatalf("unexpected numbers: %v", intent.PhoneNumbers)
	}
}

func TestParseCommand_NonJSONOutput(t *testing.T) {
	srv := completionServer(t, "Sure! I will call that number for you.")
	defer srv.Close()

	c := NewClient(config.OpenRouterConfig{APIKey: "k", Model: "test-model", BaseURL: srv.URL})
	if _, err := c.ParseCommand(context.Background(), "call someone"); err == nil {
		t.Fatalf("expected error for non-JSON model output")
	}
}

func TestParseCommand_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","code":429}}`))
	}))
	defer srv.Close()

	c := NewClient(config.OpenRouterConfig{APIKey: "k", Model: "test-model", BaseURL: srv.URL})
	if _, err := c.ParseCommand(context.Background(), "call someone"); err == nil {
		t.Fatalf("expected API error")
	}
}

func TestClientWithoutKey(t *testing.T) {
	c := NewClient(config.OpenRouterConfig{})
	if _, err := c.ParseCommand(context.Background(), "call someone"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := c.GenerateArticle(context.Background(), "t", "d"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
