package playback

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakePlayer struct {
	mu        sync.Mutex
	events    chan PlayerEvent
	played    []string
	auto      bool
	failPaths map[string]bool
	closeOnce sync.Once
}

func newFakePlayer(auto bool) *fakePlayer {
	return &fakePlayer{
		events:    make(chan PlayerEvent, 64),
		auto:      auto,
		failPaths: make(map[string]bool),
	}
}

func (p *fakePlayer) Play(path string) error {
	p.mu.Lock()
	if p.failPaths[path] {
		p.mu.Unlock()
		return os.ErrNotExist
	}
	p.played = append(p.played, path)
	p.mu.Unlock()

	p.events <- PlayerEvent{Type: PlayerStarted, Path: path}
	if p.auto {
		p.events <- PlayerEvent{Type: PlayerFinished, Path: path}
	}
	return nil
}

func (p *fakePlayer) finish(path string) {
	p.events <- PlayerEvent{Type: PlayerFinished, Path: path}
}

func (p *fakePlayer) Events() <-chan PlayerEvent { return p.events }

func (p *fakePlayer) Close() error {
	p.closeOnce.Do(func() { close(p.events) })
	return nil
}

func (p *fakePlayer) playedPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

func touchFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		paths = append(paths, path)
	}
	return paths
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestQueuePlaysItemsInOrder(t *testing.T) {
	files := touchFiles(t, "a.mp3", "b.mp3", "c.mp3")
	player := newFakePlayer(true)
	q := NewQueue("chan-1", player, nil, nil)
	defer q.Close()

	if err := q.Enqueue(&Item{ID: "r1", Files: files[:2]}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(&Item{ID: "r2", Files: files[2:]}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, "all files played", func() bool { return len(player.playedPaths()) == 3 })
	got := player.playedPaths()
	for i, want := range files {
		if got[i] != want {
			t.Fatalf("play order = %v, want %v", got, files)
		}
	}

	waitFor(t, "queue idle", q.Idle)
	for _, f := range files {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Fatalf("file %s not removed after playback", f)
		}
	}
}

func TestQueueSkipsUnplayableFile(t *testing.T) {
	files := touchFiles(t, "a.mp3", "b.mp3")
	player := newFakePlayer(true)
	player.failPaths[files[0]] = true
	q := NewQueue("chan-1", player, nil, nil)
	defer q.Close()

	if err := q.Enqueue(&Item{ID: "r1", Files: files}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, "second file played", func() bool {
		got := player.playedPaths()
		return len(got) == 1 && got[0] == files[1]
	})
	if _, err := os.Stat(files[0]); !os.IsNotExist(err) {
		t.Fatalf("unplayable file %s not removed", files[0])
	}
}

func TestQueueActivityCallback(t *testing.T) {
	files := touchFiles(t, "a.mp3")
	player := newFakePlayer(true)

	var mu sync.Mutex
	touches := 0
	q := NewQueue("chan-1", player, func() {
		mu.Lock()
		touches++
		mu.Unlock()
	}, nil)
	defer q.Close()

	if err := q.Enqueue(&Item{ID: "r1", Files: files}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// One touch when the file starts, one when the queue goes idle.
	waitFor(t, "activity callbacks", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return touches == 2
	})
}

func TestQueueDrainDiscardsPending(t *testing.T) {
	files := touchFiles(t, "a.mp3", "b.mp3", "c.mp3")
	player := newFakePlayer(false)
	q := NewQueue("chan-1", player, nil, nil)
	defer q.Close()

	if err := q.Enqueue(&Item{ID: "r1", Files: files[:2]}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(&Item{ID: "r2", Files: files[2:]}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "first file playing", func() bool { return len(player.playedPaths()) == 1 })

	q.Drain()
	player.finish(files[0])

	waitFor(t, "queue idle", q.Idle)
	if got := player.playedPaths(); len(got) != 1 {
		t.Fatalf("played %v after drain, want only the first file", got)
	}
	for _, f := range files[1:] {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Fatalf("drained file %s not removed", f)
		}
	}
}

func TestQueueCloseRemovesPendingAndRejectsEnqueue(t *testing.T) {
	files := touchFiles(t, "a.mp3", "b.mp3")
	player := newFakePlayer(false)
	q := NewQueue("chan-1", player, nil, nil)

	if err := q.Enqueue(&Item{ID: "r1", Files: files}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "first file playing", func() bool { return len(player.playedPaths()) == 1 })

	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, f := range files {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Fatalf("file %s not removed on close", f)
		}
	}
	if err := q.Enqueue(&Item{ID: "r2", Files: files}); err != ErrQueueClosed {
		t.Fatalf("Enqueue after close = %v, want ErrQueueClosed", err)
	}
}

func TestQueueCloseRemovesInFlightFile(t *testing.T) {
	files := touchFiles(t, "a.mp3")
	player := newFakePlayer(false)
	q := NewQueue("chan-1", player, nil, nil)

	if err := q.Enqueue(&Item{ID: "r1", Files: files}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, "file playing", func() bool { return len(player.playedPaths()) == 1 })

	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(files[0]); !os.IsNotExist(err) {
		t.Fatalf("in-flight file %s not removed on close", files[0])
	}
}

func TestQueueRejectsEmptyItem(t *testing.T) {
	player := newFakePlayer(true)
	q := NewQueue("chan-1", player, nil, nil)
	defer q.Close()

	if err := q.Enqueue(&Item{ID: "r1"}); err == nil {
		t.Fatal("expected error for empty item")
	}
}
