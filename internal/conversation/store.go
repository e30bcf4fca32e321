package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is a single conversational turn. Entries are append-only.
type Entry struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Key identifies one conversation: histories are isolated per channel and user.
type Key struct {
	ChannelID string
	UserID    string
}

type conversationState struct {
	entries      []Entry
	createdAt    time.Time
	lastActivity time.Time
}

// Store holds bounded per-(channel,user) conversation histories in memory.
// Oldest entries are evicted first once a conversation exceeds the cap, and
// whole conversations are dropped by the janitor once idle past maxAge.
type Store struct {
	mu            sync.Mutex
	conversations map[Key]*conversationState
	maxEntries    int
	maxAge        time.Duration
	now           func() time.Time
}

func NewStore(maxEntries int, maxAge time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = 20
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Store{
		conversations: make(map[Key]*conversationState),
		maxEntries:    maxEntries,
		maxAge:        maxAge,
		now:           time.Now,
	}
}

// Get returns a copy of the history for the key, creating an empty
// conversation on first access and refreshing its activity timestamp.
func (s *Store) Get(channelID, userID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.lookupLocked(Key{ChannelID: channelID, UserID: userID})
	st.lastActivity = s.now().UTC()

	out := make([]Entry, len(st.entries))
	copy(out, st.entries)
	return out
}

// Recent returns at most limit entries from the tail of the history.
func (s *Store) Recent(channelID, userID string, limit int) []Entry {
	entries := s.Get(channelID, userID)
	if limit <= 0 || limit >= len(entries) {
		return entries
	}
	return entries[len(entries)-limit:]
}

// Append pushes one entry under a single lock so no caller observes a torn
// history. Eviction keeps the most recent maxEntries entries in order.
func (s *Store) Append(channelID, userID string, role Role, content string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	e := Entry{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: now,
	}

	st := s.lookupLocked(Key{ChannelID: channelID, UserID: userID})
	st.entries = append(st.entries, e)
	if over := len(st.entries) - s.maxEntries; over > 0 {
		st.entries = append(st.entries[:0:0], st.entries[over:]...)
	}
	st.lastActivity = now
	return e
}

// Clear removes the conversation for the key. Clearing an absent key is a no-op.
func (s *Store) Clear(channelID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, Key{ChannelID: channelID, UserID: userID})
}

// Len reports the current entry count for the key without creating it.
func (s *Store) Len(channelID, userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.conversations[Key{ChannelID: channelID, UserID: userID}]
	if !ok {
		return 0
	}
	return len(st.entries)
}

// ActiveCount reports how many conversations are currently held.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// SweepExpired deletes conversations idle past maxAge and reports how many
// were dropped. This is the only unsolicited deletion path.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	dropped := 0
	for key, st := range s.conversations {
		if now.Sub(st.lastActivity) >= s.maxAge {
			delete(s.conversations, key)
			dropped++
		}
	}
	return dropped
}

// StartJanitor sweeps expired conversations on a fixed interval until ctx ends.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
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
				s.SweepExpired()
			}
		}
	}()
}

func (s *Store) lookupLocked(key Key) *conversationState {
	st, ok := s.conversations[key]
	if !ok {
		now := s.now().UTC()
		st = &conversationState{createdAt: now, lastActivity: now}
		s.conversations[key] = st
	}
	return st
}
