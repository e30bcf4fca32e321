package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStoreLazyCreateAndAppendOrder(t *testing.T) {
	s := NewStore(20, time.Hour)

	if got := s.Get("ch1", "u1"); len(got) != 0 {
		t.Fatalf("fresh conversation length = %d, want 0", len(got))
	}

	s.Append("ch1", "u1", RoleUser, "hello")
	s.Append("ch1", "u1", RoleAssistant, "hi there")

	got := s.Get("ch1", "u1")
	if len(got) != 2 {
		t.Fatalf("length = %d, want 2", len(got))
	}
	if got[0].Role != RoleUser || got[0].Content != "hello" {
		t.Fatalf("entry 0 = %+v, want user hello", got[0])
	}
	if got[1].Role != RoleAssistant || got[1].Content != "hi there" {
		t.Fatalf("entry 1 = %+v, want assistant reply", got[1])
	}
}

func TestStoreKeysAreIsolated(t *testing.T) {
	s := NewStore(20, time.Hour)
	s.Append("ch1", "u1", RoleUser, "a")
	s.Append("ch1", "u2", RoleUser, "b")
	s.Append("ch2", "u1", RoleUser, "c")

	if n := s.Len("ch1", "u1"); n != 1 {
		t.Fatalf("ch1/u1 length = %d, want 1", n)
	}
	if n := s.Len("ch1", "u2"); n != 1 {
		t.Fatalf("ch1/u2 length = %d, want 1", n)
	}
	if s.ActiveCount() != 3 {
		t.Fatalf("ActiveCount = %d, want 3", s.ActiveCount())
	}
}

func TestStoreCapEvictsOldestUnderHighVolume(t *testing.T) {
	const maxEntries = 10
	s := NewStore(maxEntries, time.Hour)

	for i := 0; i < 500; i++ {
		s.Append("ch1", "u1", RoleUser, fmt.Sprintf("msg-%d", i))
	}

	got := s.Get("ch1", "u1")
	if len(got) != maxEntries {
		t.Fatalf("length = %d, want exactly %d", len(got), maxEntries)
	}
	for i, e := range got {
		want := fmt.Sprintf("msg-%d", 500-maxEntries+i)
		if e.Content != want {
			t.Fatalf("entry %d = %q, want %q (most recent in recency order)", i, e.Content, want)
		}
	}
}

func TestStoreConcurrentAppendsNeverTear(t *testing.T) {
	const maxEntries = 16
	s := NewStore(maxEntries, time.Hour)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Append("ch1", "u1", RoleUser, fmt.Sprintf("w%d-%d", w, i))
				_ = s.Get("ch1", "u1")
			}
		}(w)
	}
	wg.Wait()

	if n := s.Len("ch1", "u1"); n != maxEntries {
		t.Fatalf("length after concurrent appends = %d, want %d", n, maxEntries)
	}
}

func TestStoreRecentWindow(t *testing.T) {
	s := NewStore(50, time.Hour)
	for i := 0; i < 30; i++ {
		s.Append("ch1", "u1", RoleUser, fmt.Sprintf("m%d", i))
	}

	got := s.Recent("ch1", "u1", 10)
	if len(got) != 10 {
		t.Fatalf("Recent(10) length = %d, want 10", len(got))
	}
	if got[0].Content != "m20" || got[9].Content != "m29" {
		t.Fatalf("Recent window = [%s..%s], want [m20..m29]", got[0].Content, got[9].Content)
	}
}

func TestStoreClearIsIdempotent(t *testing.T) {
	s := NewStore(20, time.Hour)
	s.Append("ch1", "u1", RoleUser, "x")
	s.Clear("ch1", "u1")
	s.Clear("ch1", "u1")
	if n := s.Len("ch1", "u1"); n != 0 {
		t.Fatalf("length after clear = %d, want 0", n)
	}
}

func TestStoreSweepExpiredDropsIdleConversations(t *testing.T) {
	s := NewStore(20, 50*time.Millisecond)
	now := time.Unix(1700000000, 0)
	s.now = func() time.Time { return now }

	s.Append("ch1", "u1", RoleUser, "old")
	now = now.Add(time.Second)
	s.Append("ch2", "u2", RoleUser, "fresh")
	now = now.Add(40 * time.Millisecond)

	if dropped := s.SweepExpired(); dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	if s.Len("ch1", "u1") != 0 {
		t.Fatalf("idle conversation should be gone")
	}
	if s.Len("ch2", "u2") != 1 {
		t.Fatalf("fresh conversation should survive sweep")
	}
}

func TestStoreJanitorSweeps(t *testing.T) {
	s := NewStore(20, 30*time.Millisecond)
	s.Append("ch1", "u1", RoleUser, "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.ActiveCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("janitor never swept the idle conversation")
}
