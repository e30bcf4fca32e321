package playback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ariavoice/aria/internal/observability"
)

var ErrNoSession = errors.New("no voice session for channel")

// Session is a live attachment to one voice channel with its playback queue.
type Session struct {
	GroupID   string
	ChannelID string

	conn  Connection
	queue *Queue

	mu           sync.Mutex
	lastActivity time.Time
	startedAt    time.Time
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now().UTC()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Manager owns at most one voice session per channel and at most one per
// group, and tears sessions down after sustained inactivity.
type Manager struct {
	mu        sync.Mutex
	byChannel map[string]*Session
	byGroup   map[string]string

	dialer       Dialer
	readyTimeout time.Duration
	inactivity   time.Duration
	metrics      *observability.Metrics
}

func NewManager(dialer Dialer, readyTimeout, inactivity time.Duration, metrics *observability.Metrics) *Manager {
	if readyTimeout <= 0 {
		readyTimeout = 30 * time.Second
	}
	if inactivity <= 0 {
		inactivity = 5 * time.Minute
	}
	return &Manager{
		byChannel:    make(map[string]*Session),
		byGroup:      make(map[string]string),
		dialer:       dialer,
		readyTimeout: readyTimeout,
		inactivity:   inactivity,
		metrics:      metrics,
	}
}

// Join attaches to a voice channel. Joining a channel that already has a
// session reuses it; joining a different channel of the same group tears
// the old session down first.
func (m *Manager) Join(ctx context.Context, groupID, channelID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.byChannel[channelID]; ok {
		m.mu.Unlock()
		s.touch()
		return s, nil
	}
	prev := ""
	if old, ok := m.byGroup[groupID]; ok && old != channelID {
		prev = old
	}
	m.mu.Unlock()

	if prev != "" {
		if err := m.Leave(prev); err != nil {
			log.Printf("tearing down previous session in group %s: %v", groupID, err)
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, m.readyTimeout)
	defer cancel()
	conn, err := m.dialer.Dial(dialCtx, groupID, channelID)
	if err != nil {
		return nil, fmt.Errorf("join voice channel %s: %w", channelID, err)
	}

	player, err := conn.NewPlayer()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create player for channel %s: %w", channelID, err)
	}

	now := time.Now().UTC()
	s := &Session{
		GroupID:      groupID,
		ChannelID:    channelID,
		conn:         conn,
		lastActivity: now,
		startedAt:    now,
	}
	s.queue = NewQueue(channelID, player, s.touch, m.metrics)

	m.mu.Lock()
	if existing, ok := m.byChannel[channelID]; ok {
		// Lost the race to a concurrent Join. Keep the winner.
		m.mu.Unlock()
		s.queue.Close()
		conn.Close()
		existing.touch()
		return existing, nil
	}
	m.byChannel[channelID] = s
	m.byGroup[groupID] = channelID
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveVoiceSessions.Inc()
	}
	log.Printf("joined voice channel %s in group %s", channelID, groupID)
	return s, nil
}

// Enqueue plays files in order on the channel's session.
func (m *Manager) Enqueue(channelID string, item *Item) error {
	m.mu.Lock()
	s, ok := m.byChannel[channelID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, channelID)
	}
	s.touch()
	return s.queue.Enqueue(item)
}

// Lookup returns the session for a channel, if any.
func (m *Manager) Lookup(channelID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byChannel[channelID]
	return s, ok
}

// Leave tears down the channel's session. Leaving a channel without a
// session is a no-op.
func (m *Manager) Leave(channelID string) error {
	m.mu.Lock()
	s, ok := m.byChannel[channelID]
	if ok {
		delete(m.byChannel, channelID)
		if m.byGroup[s.GroupID] == channelID {
			delete(m.byGroup, s.GroupID)
		}
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.teardown(s)
}

func (m *Manager) teardown(s *Session) error {
	err := s.queue.Close()
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	if m.metrics != nil {
		m.metrics.ActiveVoiceSessions.Dec()
	}
	log.Printf("left voice channel %s in group %s", s.ChannelID, s.GroupID)
	return err
}

// ActiveCount reports live sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byChannel)
}

// StartJanitor tears down sessions idle past the inactivity timeout.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireIdle()
			}
		}
	}()
}

func (m *Manager) expireIdle() {
	now := time.Now().UTC()

	m.mu.Lock()
	var expired []*Session
	for channelID, s := range m.byChannel {
		if !s.queue.Idle() {
			continue
		}
		if now.Sub(s.idleSince()) < m.inactivity {
			continue
		}
		delete(m.byChannel, channelID)
		if m.byGroup[s.GroupID] == channelID {
			delete(m.byGroup, s.GroupID)
		}
		expired = append(expired, s)
	}
	m.mu.Unlock()

	for _, s := range expired {
		if err := m.teardown(s); err != nil {
			log.Printf("expiring idle session on channel %s: %v", s.ChannelID, err)
		}
	}
}

// Shutdown tears down every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.byChannel))
	for _, s := range m.byChannel {
		sessions = append(sessions, s)
	}
	m.byChannel = make(map[string]*Session)
	m.byGroup = make(map[string]string)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := m.teardown(s); err != nil {
			log.Printf("shutdown of channel %s: %v", s.ChannelID, err)
		}
	}
}
