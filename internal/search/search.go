// Package search enriches prompts with instant-answer lookups for queries
// that ask about current or factual information.
package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const defaultBaseURL = "https://api.duckduckgo.com"

// triggerWords mark queries that likely benefit from a lookup.
var triggerWords = []string{
	"latest", "today", "current", "news", "weather", "price",
	"who is", "what is", "when did", "when is", "where is", "how many",
}

type instantAnswer struct {
	AbstractText  string `json:"AbstractText"`
	Answer        string `json:"Answer"`
	Definition    string `json:"Definition"`
	RelatedTopics []struct {
		Text string `json:"Text"`
	} `json:"RelatedTopics"`
}

// Client queries the DuckDuckGo Instant Answer API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ShouldSearch reports whether the query looks like it needs fresh facts.
func ShouldSearch(query string) bool {
	q := strings.ToLower(query)
	for _, w := range triggerWords {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// Search returns a short snippet for the query. ok is false when the query
// does not warrant a lookup or no answer came back.
func (c *Client) Search(ctx context.Context, query string) (string, bool, error) {
	if !ShouldSearch(query) {
		return "", false, nil
	}

	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("search: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("search: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false, fmt.Errorf("search: read response: %w", err)
	}

	var answer instantAnswer
	if err := sonic.Unmarshal(body, &answer); err != nil {
		return "", false, fmt.Errorf("search: decode response: %w", err)
	}

	snippet := pickSnippet(answer)
	if snippet == "" {
		return "", false, nil
	}
	return snippet, true, nil
}

func pickSnippet(a instantAnswer) string {
	for _, s := range []string{a.Answer, a.AbstractText, a.Definition} {
		if s = strings.TrimSpace(s); s != "" {
			return clip(s, 500)
		}
	}
	for _, topic := range a.RelatedTopics {
		if s := strings.TrimSpace(topic.Text); s != "" {
			return clip(s, 500)
		}
	}
	return ""
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
