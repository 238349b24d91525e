package llm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"dossier/internal/config"
	"dossier/internal/services/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *llm.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return llm.NewClient(config.LLM{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
	}, llm.WithRetryBackoff(0, 0), llm.WithSleeper(func(time.Duration) {}))
}

func TestCompleteJSONReturnsContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	})

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("unexpected content: %s", content)
	}
}

func TestCompleteJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	})

	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestCompleteJSONRequiresAPIKey(t *testing.T) {
	client := llm.NewClient(config.LLM{})
	if client.Configured() {
		t.Fatal("expected unconfigured client")
	}
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestDecodeJSONHandlesCodeFences(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"plain", `{"value":1}`},
		{"fenced", "```json\n{\"value\":1}\n```"},
		{"prose", "Here you go: {\"value\":1} as requested"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var parsed struct {
				Value int `json:"value"`
			}
			if err := llm.DecodeJSON(tc.payload, &parsed); err != nil {
				t.Fatalf("DecodeJSON failed: %v", err)
			}
			if parsed.Value != 1 {
				t.Fatalf("unexpected value %d", parsed.Value)
			}
		})
	}
}
