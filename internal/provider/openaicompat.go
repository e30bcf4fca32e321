package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ariavoice/aria/internal/reliability"
)

const (
	groqBaseURL       = "https://api.groq.com/openai/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenAICompat calls any OpenAI-compatible chat completion endpoint.
// Groq and OpenRouter both speak this protocol.
type OpenAICompat struct {
	name      string
	client    *openai.Client
	maxTokens int
}

func NewGroq(apiKey string, maxTokens int) *OpenAICompat {
	return newOpenAICompat("groq", apiKey, groqBaseURL, maxTokens)
}

func NewOpenRouter(apiKey string, maxTokens int) *OpenAICompat {
	return newOpenAICompat("openrouter", apiKey, openRouterBaseURL, maxTokens)
}

func newOpenAICompat(name, apiKey, baseURL string, maxTokens int) *OpenAICompat {
	p := &OpenAICompat{name: name, maxTokens: maxTokens}
	if strings.TrimSpace(apiKey) == "" {
		return p
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	p.client = openai.NewClientWithConfig(cfg)
	return p
}

func (p *OpenAICompat) Name() string { return p.name }

// Configured reports whether credentials were provided at construction.
func (p *OpenAICompat) Configured() bool { return p.client != nil }

func (p *OpenAICompat) Call(ctx context.Context, model, message string, history []Message, systemPrompt string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("%s: %w", p.name, ErrNotConfigured)
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &CallError{Provider: p.name, Err: errors.New("empty choices in response")}
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", &CallError{Provider: p.name, Err: errors.New("empty reply text")}
	}
	return reply, nil
}

func (p *OpenAICompat) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &CallError{
			Provider:    p.name,
			StatusCode:  apiErr.HTTPStatusCode,
			RateLimited: reliability.IsRateLimitedHTTPStatus(apiErr.HTTPStatusCode),
			Err:         err,
		}
	}
	return &CallError{Provider: p.name, Err: err}
}
