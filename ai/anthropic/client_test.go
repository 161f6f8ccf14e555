package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/anuraag-saini/fireqsp-share-sub000/ai"
)

func messagesResponse(text string) MessagesResponse {
	return MessagesResponse{
		ID:   "msg_test",
		Type: "message",
		Role: "assistant",
		Content: []ContentBlock{
			{Type: "text", Text: text},
		},
		Model:      "claude-sonnet-4-20250514",
		StopReason: "end_turn",
		Usage:      Usage{InputTokens: 10, OutputTokens: 5},
	}
}

// TestClient_Configuration tests client configuration and defaults
func TestClient_Configuration(t *testing.T) {
	t.Run("applies default values", func(t *testing.T) {
		client := NewClient(Config{APIKeys: []string{"test-key"}})

		if client.config.Model != DefaultModel {
			t.Errorf("expected default model %s, got %s", DefaultModel, client.config.Model)
		}
		if client.config.Temperature != 0.2 {
			t.Errorf("expected default temperature 0.2, got %f", client.config.Temperature)
		}
		if client.config.MaxTokens != 4096 {
			t.Errorf("expected default max tokens 4096, got %d", client.config.MaxTokens)
		}
		if client.limiter != nil {
			t.Error("expected no rate limiter when RequestsPerMinute is 0")
		}
	})

	t.Run("preserves custom values", func(t *testing.T) {
		client := NewClient(Config{
			APIKeys:           []string{"test-key"},
			Model:             "claude-3-5-haiku-20241022",
			Temperature:       0.7,
			MaxTokens:         2000,
			RequestsPerMinute: 30,
		})

		if client.config.Model != "claude-3-5-haiku-20241022" {
			t.Errorf("expected custom model, got %s", client.config.Model)
		}
		if client.config.Temperature != 0.7 {
			t.Errorf("expected custom temperature, got %f", client.config.Temperature)
		}
		if client.limiter == nil {
			t.Error("expected rate limiter when RequestsPerMinute is set")
		}
	})
}

// TestClient_IsConfigured tests API key validation
func TestClient_IsConfigured(t *testing.T) {
	t.Run("returns true with at least one key", func(t *testing.T) {
		client := NewClient(Config{APIKeys: []string{"test-key"}})
		if !client.IsConfigured() {
			t.Error("expected IsConfigured to return true")
		}
	})

	t.Run("returns false without keys", func(t *testing.T) {
		client := NewClient(Config{})
		if client.IsConfigured() {
			t.Error("expected IsConfigured to return false")
		}
	})

	t.Run("ignores empty key slots", func(t *testing.T) {
		client := NewClient(Config{APIKeys: []string{"", ""}})
		if client.IsConfigured() {
			t.Error("expected empty keys to be dropped")
		}
	})
}

// TestClient_Chat tests the high-level Chat method
func TestClient_Chat(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "POST" {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if r.URL.Path != "/messages" {
				t.Errorf("expected /messages path, got %s", r.URL.Path)
			}
			if r.Header.Get("x-api-key") != "test-key" {
				t.Error("expected x-api-key header")
			}
			if r.Header.Get("anthropic-version") != APIVersion {
				t.Error("expected anthropic-version header")
			}

			var req MessagesRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if req.System != "system prompt" {
				t.Errorf("expected system prompt, got %q", req.System)
			}
			if len(req.Messages) != 1 || req.Messages[0].Content != "user prompt" {
				t.Errorf("unexpected messages: %+v", req.Messages)
			}

			json.NewEncoder(w).Encode(messagesResponse("model output"))
		}))
		defer server.Close()

		client := NewClient(Config{APIKeys: []string{"test-key"}})
		client.SetBaseURL(server.URL)
		client.SetHTTPClient(server.Client())

		resp, err := client.Chat(context.Background(), ai.ChatRequest{
			SystemPrompt: "system prompt",
			UserPrompt:   "user prompt",
		})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if resp.Content != "model output" {
			t.Errorf("expected 'model output', got %q", resp.Content)
		}
		if resp.Usage.TotalTokens != 15 {
			t.Errorf("expected 15 total tokens, got %d", resp.Usage.TotalTokens)
		}
	})

	t.Run("request overrides take precedence", func(t *testing.T) {
		var got MessagesRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(messagesResponse("ok"))
		}))
		defer server.Close()

		client := NewClient(Config{APIKeys: []string{"test-key"}, Temperature: 0.5})
		client.SetBaseURL(server.URL)
		client.SetHTTPClient(server.Client())

		_, err := client.Chat(context.Background(), ai.ChatRequest{
			UserPrompt:  "prompt",
			Temperature: ai.Float64(0.0),
			MaxTokens:   ai.Int(256),
			Model:       strPtr("claude-3-5-haiku-20241022"),
		})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if got.Temperature != 0.0 {
			t.Errorf("expected temperature override 0.0, got %f", got.Temperature)
		}
		if got.MaxTokens != 256 {
			t.Errorf("expected max tokens override 256, got %d", got.MaxTokens)
		}
		if got.Model != "claude-3-5-haiku-20241022" {
			t.Errorf("expected model override, got %s", got.Model)
		}
	})

	t.Run("rotates keys across requests", func(t *testing.T) {
		var mu sync.Mutex
		var seen []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			seen = append(seen, r.Header.Get("x-api-key"))
			mu.Unlock()
			json.NewEncoder(w).Encode(messagesResponse("ok"))
		}))
		defer server.Close()

		client := NewClient(Config{APIKeys: []string{"key-a", "key-b"}})
		client.SetBaseURL(server.URL)
		client.SetHTTPClient(server.Client())

		for i := 0; i < 3; i++ {
			if _, err := client.Chat(context.Background(), ai.ChatRequest{UserPrompt: "p"}); err != nil {
				t.Fatalf("Chat %d failed: %v", i, err)
			}
		}

		want := []string{"key-a", "key-b", "key-a"}
		for i, key := range want {
			if seen[i] != key {
				t.Errorf("request %d: expected key %s, got %s", i, key, seen[i])
			}
		}
	})

	t.Run("retries overloaded responses", func(t *testing.T) {
		var mu sync.Mutex
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				w.WriteHeader(529)
				w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error"}}`))
				return
			}
			json.NewEncoder(w).Encode(messagesResponse("recovered"))
		}))
		defer server.Close()

		client := NewClient(Config{APIKeys: []string{"test-key"}})
		client.SetBaseURL(server.URL)
		client.SetHTTPClient(server.Client())

		resp, err := client.Chat(context.Background(), ai.ChatRequest{UserPrompt: "p"})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if resp.Content != "recovered" {
			t.Errorf("expected retried response, got %q", resp.Content)
		}
		if calls != 2 {
			t.Errorf("expected 2 attempts, got %d", calls)
		}
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error"}}`))
		}))
		defer server.Close()

		client := NewClient(Config{APIKeys: []string{"test-key"}})
		client.SetBaseURL(server.URL)
		client.SetHTTPClient(server.Client())

		_, err := client.Chat(context.Background(), ai.ChatRequest{UserPrompt: "p"})
		if err == nil {
			t.Fatal("expected error for 400 response")
		}
		if calls != 1 {
			t.Errorf("expected 1 attempt, got %d", calls)
		}
	})

	t.Run("fails without credentials", func(t *testing.T) {
		client := NewClient(Config{})
		if _, err := client.Chat(context.Background(), ai.ChatRequest{UserPrompt: "p"}); err == nil {
			t.Fatal("expected error for unconfigured client")
		}
	})
}

func TestKeyPool(t *testing.T) {
	pool := newKeyPool([]string{"a", "", "b"})
	if pool.Size() != 2 {
		t.Fatalf("expected 2 keys after dropping empties, got %d", pool.Size())
	}

	want := []string{"a", "b", "a", "b"}
	for i, k := range want {
		if got := pool.Next(); got != k {
			t.Errorf("rotation %d: expected %s, got %s", i, k, got)
		}
	}

	empty := newKeyPool(nil)
	if empty.Next() != "" {
		t.Error("expected empty string from empty pool")
	}
}

func TestCalculateCost(t *testing.T) {
	cost := CalculateCost("claude-sonnet-4-20250514", 1_000_000, 1_000_000)
	if cost != 18.00 {
		t.Errorf("expected $18.00 for 1M+1M sonnet tokens, got %f", cost)
	}

	if CalculateCost("unknown-model", 100, 100) != DefaultPricingFallback {
		t.Error("expected fallback pricing for unknown model")
	}
}

func strPtr(s string) *string { return &s }
