package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FFmpegConcatenator joins audio files with ffmpeg's concat demuxer,
// copying streams without re-encoding.
type FFmpegConcatenator struct {
	cli string
}

func NewFFmpegConcatenator(cli string) *FFmpegConcatenator {
	if cli == "" {
		cli = "ffmpeg"
	}
	return &FFmpegConcatenator{cli: cli}
}

func (c *FFmpegConcatenator) Concat(ctx context.Context, inputs []string, outPath string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concat: no input files")
	}
	if len(inputs) == 1 {
		return os.Rename(inputs[0], outPath)
	}

	listPath := outPath + ".list"
	var list strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("concat: resolve %s: %w", in, err)
		}
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("concat: write list file: %w", err)
	}
	defer os.Remove(listPath)

	cmd := exec.CommandContext(ctx, c.cli,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		if ctx.Err() != nil {
			return fmt.Errorf("concat: %w", ctx.Err())
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("concat: ffmpeg: %v: %s", err, lastLine(msg))
		}
		return fmt.Errorf("concat: ffmpeg: %w", err)
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("concat: ffmpeg produced no output")
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(strings.TrimRight(s, "\n"), '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
