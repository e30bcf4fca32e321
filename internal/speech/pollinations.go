package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ariavoice/aria/internal/reliability"
)

const pollinationsAudioBaseURL = "https://text.pollinations.ai"

// PollinationsBackend fetches audio over HTTP from the keyless Pollinations
// openai-audio endpoint.
type PollinationsBackend struct {
	baseURL string
	client  *http.Client
}

func NewPollinationsBackend(baseURL string) *PollinationsBackend {
	if baseURL == "" {
		baseURL = pollinationsAudioBaseURL
	}
	return &PollinationsBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *PollinationsBackend) Name() string { return "pollinations" }

func (b *PollinationsBackend) Synthesize(ctx context.Context, text, voice, outPath string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("pollinations tts: empty text")
	}

	endpoint := fmt.Sprintf("%s/%s?model=openai-audio&voice=%s",
		b.baseURL, url.PathEscape(text), url.QueryEscape(voice))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("pollinations tts: build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("pollinations tts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if reliability.IsRateLimitedHTTPStatus(resp.StatusCode) {
			return fmt.Errorf("pollinations tts: rate limited (status %d)", resp.StatusCode)
		}
		return fmt.Errorf("pollinations tts: unexpected status %d", resp.StatusCode)
	}

	// Error pages come back 200 with a text content type.
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/") {
		return fmt.Errorf("pollinations tts: got %q instead of audio", ct)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("pollinations tts: create output: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("pollinations tts: write output: %w", err)
	}
	return nil
}
