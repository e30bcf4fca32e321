package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
)

func TestPollinationsCallReturnsPlainText(t *testing.T) {
	var got pollinationsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(body, &got); err != nil {
			t.Errorf("request body not JSON: %v", err)
		}
		io.WriteString(w, "  the answer  \n")
	}))
	defer srv.Close()

	p := NewPollinations()
	p.baseURL = srv.URL

	history := []Message{{Role: "user", Content: "earlier"}, {Role: "assistant", Content: "before"}}
	reply, err := p.Call(context.Background(), "openai", "question", history, "system prompt")
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if reply != "the answer" {
		t.Fatalf("reply = %q, want trimmed plain text", reply)
	}

	if got.Model != "openai" {
		t.Fatalf("model = %q, want openai", got.Model)
	}
	// system + 2 history + user
	if len(got.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[3].Content != "question" {
		t.Fatalf("message order wrong: %+v", got.Messages)
	}
}

func TestPollinationsCallClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewPollinations()
	p.baseURL = srv.URL

	_, err := p.Call(context.Background(), "openai", "q", nil, "")
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("Call() error = %v, want *CallError", err)
	}
	if !callErr.RateLimited || callErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("CallError = %+v, want rate limited 429", callErr)
	}
}

func TestPollinationsCallRejectsEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "   ")
	}))
	defer srv.Close()

	p := NewPollinations()
	p.baseURL = srv.URL

	if _, err := p.Call(context.Background(), "openai", "q", nil, ""); err == nil {
		t.Fatalf("Call() expected error for empty reply body")
	}
}

func TestOpenAICompatNotConfigured(t *testing.T) {
	p := NewGroq("", 500)
	_, err := p.Call(context.Background(), "llama-3.3-70b-versatile", "q", nil, "")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Call() error = %v, want ErrNotConfigured", err)
	}
	if p.Configured() {
		t.Fatalf("Configured() = true without an API key")
	}
}
