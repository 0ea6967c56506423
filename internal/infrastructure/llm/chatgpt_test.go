package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ContentForge/internal/config"
)

func TestCompleteReturnsAssistantReply(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello there"}}]}`))
	}))
	defer server.Close()

	client := NewChatGPTClient(config.LLMConfig{
		Endpoint: server.URL,
		Model:    "test-model",
		APIKey:   "test-key",
	})

	got, err := client.Complete(context.Background(), "be terse", "say hello")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("reply = %q", got)
	}
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewChatGPTClient(config.LLMConfig{
		Endpoint: server.URL,
		Model:    "test-model",
		APIKey:   "test-key",
	})

	if _, err := client.Complete(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error on 429 response")
	}
}

func TestStripCodeFence(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{"plain text", "plain text"},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n[1,2]\n```", "[1,2]"},
		{"  ```markdown\n# Title\nbody\n```  ", "# Title\nbody"},
	}
	for _, tc := range cases {
		if got := StripCodeFence(tc.in); got != tc.want {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
