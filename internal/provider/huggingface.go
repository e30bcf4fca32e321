package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ariavoice/aria/internal/reliability"
)

const huggingFaceBaseURL = "https://api-inference.huggingface.co"

// HuggingFace calls the hosted inference API with a flattened prompt,
// for models that are not exposed behind a chat-completions surface.
type HuggingFace struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewHuggingFace(apiKey string) *HuggingFace {
	return &HuggingFace{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: huggingFaceBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *HuggingFace) Name() string { return "huggingface" }

func (p *HuggingFace) Configured() bool { return p.apiKey != "" }

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
	Error         string `json:"error"`
}

func (p *HuggingFace) Call(ctx context.Context, model, message string, _ []Message, systemPrompt string) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("%s: %w", p.Name(), ErrNotConfigured)
	}

	prompt := fmt.Sprintf("%s\n\nUser: %s\nAssistant:", systemPrompt, message)
	payload, err := sonic.Marshal(hfRequest{
		Inputs:     prompt,
		Parameters: hfParameters{MaxNewTokens: 300, Temperature: 0.7},
	})
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("marshal request: %w", err)}
	}

	endpoint := p.baseURL + "/models/" + url.PathEscape(model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &CallError{Provider: p.Name(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
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

	var generations []hfGeneration
	if err := sonic.Unmarshal(body, &generations); err != nil {
		// Some models answer with a single object instead of a list.
		var single hfGeneration
		if err2 := sonic.Unmarshal(body, &single); err2 != nil {
			return "", &CallError{Provider: p.Name(), Err: fmt.Errorf("malformed response: %w", err)}
		}
		generations = []hfGeneration{single}
	}
	if len(generations) == 0 {
		return "", &CallError{Provider: p.Name(), Err: errors.New("empty generation list")}
	}
	if generations[0].Error != "" {
		return "", &CallError{Provider: p.Name(), Err: errors.New(generations[0].Error)}
	}

	text := generations[0].GeneratedText
	// The hosted API echoes the prompt; keep only the assistant tail.
	if idx := strings.LastIndex(text, "Assistant:"); idx >= 0 {
		text = text[idx+len("Assistant:"):]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &CallError{Provider: p.Name(), Err: errors.New("empty reply text")}
	}
	return text, nil
}
