package speech

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// edge-tts rejects very long inputs, so chunks are truncated before the call.
const edgeMaxTextLen = 500

// EdgeBackend shells out to the edge-tts CLI. It is keyless and serves as
// the fixed fallback for the other backends.
type EdgeBackend struct {
	cli string
}

func NewEdgeBackend(cli string) *EdgeBackend {
	if cli == "" {
		cli = "edge-tts"
	}
	return &EdgeBackend{cli: cli}
}

func (b *EdgeBackend) Name() string { return "edge" }

func (b *EdgeBackend) Synthesize(ctx context.Context, text, voice, outPath string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("edge-tts: empty text")
	}
	if runes := []rune(text); len(runes) > edgeMaxTextLen {
		text = strings.TrimSpace(string(runes[:edgeMaxTextLen]))
	}

	cmd := exec.CommandContext(ctx, b.cli,
		"--voice", voice,
		"--text", text,
		"--write-media", outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("edge-tts: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("edge-tts: %v: %s", err, firstLine(msg))
		}
		return fmt.Errorf("edge-tts: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
