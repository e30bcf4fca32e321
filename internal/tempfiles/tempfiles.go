package tempfiles

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Dir manages the single temporary directory holding synthesized audio.
// File names embed the reply session ID so one reply's files can be located
// and purged together; a periodic sweep removes anything older than maxAge
// as a safety net against leaks.
type Dir struct {
	root   string
	maxAge time.Duration
}

func New(root string, maxAge time.Duration) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	return &Dir{root: root, maxAge: maxAge}, nil
}

func (d *Dir) Root() string { return d.root }

// Path names the seq-th audio file of a reply session.
func (d *Dir) Path(sessionID string, seq int, ext string) string {
	return filepath.Join(d.root, fmt.Sprintf("tts_%s_%03d.%s", sessionID, seq, ext))
}

// PurgeSession deletes every file belonging to one reply session.
func (d *Dir) PurgeSession(sessionID string) int {
	matches, err := filepath.Glob(filepath.Join(d.root, "tts_"+sessionID+"_*"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, m := range matches {
		if Remove(m) {
			removed++
		}
	}
	return removed
}

// Sweep deletes any file older than maxAge regardless of session state.
func (d *Dir) Sweep() int {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		log.Printf("temp sweep: read dir failed: %v", err)
		return 0
	}
	cutoff := time.Now().Add(-d.maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if Remove(filepath.Join(d.root, e.Name())) {
				removed++
			}
		}
	}
	return removed
}

// StartJanitor sweeps stale files on a fixed interval until ctx ends.
func (d *Dir) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.Sweep()
			}
		}
	}()
}

// Remove deletes a file, tolerating files already gone.
func Remove(path string) bool {
	if path == "" {
		return false
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		log.Printf("temp file remove failed: %v", err)
		return false
	}
	return err == nil
}
