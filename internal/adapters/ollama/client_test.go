package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harmonia-labs/livemix/internal/core/ports"
)

func TestClient_Complete(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: `[{"name":"Song","artist":"Artist"}]`},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model")
	out, err := c.Complete(context.Background(), "suggest tracks", ports.CompletionOptions{
		System:          "you are a dj",
		ReasoningBudget: 256,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `[{"name":"Song","artist":"Artist"}]` {
		t.Fatalf("unexpected content: %q", out)
	}

	if gotReq.Model != "test-model" || gotReq.Stream {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("system prompt not forwarded: %+v", gotReq.Messages)
	}
	if got := gotReq.Options["num_predict"]; got != float64(256) {
		t.Fatalf("reasoning budget not applied: %v", got)
	}
}

func TestClient_Complete_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"upstream error field", `{"error": "model not found"}`, http.StatusOK},
		{"empty content", `{"message": {"role": "assistant", "content": "  "}}`, http.StatusOK},
		{"server error", ``, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "")
			if _, err := c.Complete(context.Background(), "p", ports.CompletionOptions{}); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
