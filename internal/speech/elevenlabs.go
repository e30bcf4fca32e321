package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/gorilla/websocket"
)

const (
	elevenDefaultModelID      = "eleven_multilingual_v2"
	elevenDefaultOutputFormat = "mp3_44100_128"
)

// ElevenLabsBackend streams text to the ElevenLabs stream-input websocket
// and collects the returned audio frames into one file.
type ElevenLabsBackend struct {
	apiKey    string
	wsBaseURL string
	modelID   string
}

func NewElevenLabsBackend(apiKey, wsBaseURL string) *ElevenLabsBackend {
	if strings.TrimSpace(wsBaseURL) == "" {
		wsBaseURL = "wss://api.elevenlabs.io"
	}
	return &ElevenLabsBackend{
		apiKey:    strings.TrimSpace(apiKey),
		wsBaseURL: wsBaseURL,
		modelID:   elevenDefaultModelID,
	}
}

func (b *ElevenLabsBackend) Name() string { return "elevenlabs" }

func (b *ElevenLabsBackend) Configured() bool { return b.apiKey != "" }

func (b *ElevenLabsBackend) Synthesize(ctx context.Context, text, voice, outPath string) error {
	if b.apiKey == "" {
		return fmt.Errorf("elevenlabs: api key not configured")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("elevenlabs: empty text")
	}
	if strings.TrimSpace(voice) == "" {
		return fmt.Errorf("elevenlabs: voice id is required")
	}

	u, err := url.Parse(strings.TrimRight(b.wsBaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(voice) + "/stream-input")
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("model_id", b.modelID)
	q.Set("output_format", elevenDefaultOutputFormat)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", b.apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		return fmt.Errorf("elevenlabs: dial tts websocket: %w", err)
	}
	defer conn.Close()

	// Close the socket when the context ends so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// Prime the stream as documented for TTS websocket flows.
	if err := conn.WriteJSON(map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        0.42,
			"similarity_boost": 0.85,
		},
	}); err != nil {
		return fmt.Errorf("elevenlabs: open stream: %w", err)
	}
	if err := conn.WriteJSON(map[string]any{"text": text + " ", "try_trigger_generation": true}); err != nil {
		return fmt.Errorf("elevenlabs: send text: %w", err)
	}
	// Empty text closes the input side.
	if err := conn.WriteJSON(map[string]any{"text": ""}); err != nil {
		return fmt.Errorf("elevenlabs: close input: %w", err)
	}

	audio, err := b.collectAudio(ctx, conn)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		return fmt.Errorf("elevenlabs: stream returned no audio")
	}
	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		return fmt.Errorf("elevenlabs: write output: %w", err)
	}
	return nil
}

func (b *ElevenLabsBackend) collectAudio(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var audio []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("elevenlabs: %w", ctx.Err())
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(audio) > 0 {
				return audio, nil
			}
			return nil, fmt.Errorf("elevenlabs: read stream: %w", err)
		}

		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}
		if errMsg, _ := raw["error"].(string); errMsg != "" {
			return nil, fmt.Errorf("elevenlabs: stream error: %s", errMsg)
		}
		if encoded, _ := raw["audio"].(string); encoded != "" {
			frame, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio frame: %w", err)
			}
			audio = append(audio, frame...)
		}
		if isFinal(raw) {
			return audio, nil
		}
	}
}

func isFinal(raw map[string]any) bool {
	if v, ok := raw["isFinal"].(bool); ok && v {
		return true
	}
	if v, ok := raw["is_final"].(bool); ok && v {
		return true
	}
	return false
}
