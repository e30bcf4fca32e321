package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ariavoice/aria/internal/reliability"
)

const pollinationsBaseURL = "https://text.pollinations.ai"

// Pollinations talks to the keyless text.pollinations.ai endpoint.
// It is the fixed always-available fallback for the dispatcher.
type Pollinations struct {
	baseURL string
	client  *http.Client
}

func NewPollinations() *Pollinations {
	return &Pollinations{
		baseURL: pollinationsBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *Pollinations) Name() string { return "pollinations" }

type pollinationsRequest struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model"`
	Seed     int       `json:"seed"`
}

func (p *Pollinations) Call(ctx context.Context, model, message string, history []Message, systemPrompt string) (string, error) {
	messages := make([]Message, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: message})

	payload, err := sonic.Marshal(pollinationsRequest{
		Messages: messages,
		Model:    model,
		Seed:     rand.Intn(1000000),
	})
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/", bytes.NewReader(payload))
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("read response: %w", err)}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &CallError{
			Provider:    p.Name(),
			StatusCode:  res.StatusCode,
			RateLimited: reliability.IsRateLimitedHTTPStatus(res.StatusCode),
			Err:         fmt.Errorf("status %d: %s", res.StatusCode, truncateBody(body)),
		}
	}

	// Pollinations returns plain text.
	reply := strings.TrimSpace(string(body))
	if reply == "" {
		return "", &CallError{Provider: p.Name(), Err: errors.New("empty reply text")}
	}
	return reply, nil
}

func truncateBody(b []byte) string {
	const max = 256
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
