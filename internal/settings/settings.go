package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

type Mode string

const (
	ModeText  Mode = "text"
	ModeVoice Mode = "voice"
)

// ChannelSettings selects the backends and behavior for one channel.
type ChannelSettings struct {
	AIProvider   string `json:"ai_provider"`
	AIModel      string `json:"ai_model"`
	TTSBackend   string `json:"tts_backend"`
	TTSVoice     string `json:"tts_voice"`
	Mode         Mode   `json:"mode"`
	SystemPrompt string `json:"system_prompt"`
}

// Defaults returns the settings applied to channels that never changed anything.
func Defaults() ChannelSettings {
	return ChannelSettings{
		AIProvider: "groq",
		AIModel:    "llama-3.3-70b-versatile",
		TTSBackend: "edge",
		TTSVoice:   "en-US-JennyNeural",
		Mode:       ModeVoice,
		SystemPrompt: "You are Aria, a friendly and helpful voice assistant. " +
			"Keep answers short and natural to speak aloud: two or three sentences, " +
			"no markdown, no long lists, no code.",
	}
}

// Manager keeps per-channel settings and persists them to a JSON file.
type Manager struct {
	mu        sync.Mutex
	path      string
	defaults  ChannelSettings
	byChannel map[string]ChannelSettings
}

func NewManager(path string, defaults ChannelSettings) (*Manager, error) {
	m := &Manager{
		path:      path,
		defaults:  defaults,
		byChannel: make(map[string]ChannelSettings),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Lookup returns the effective settings for a channel, falling back to defaults.
func (m *Manager) Lookup(channelID string) ChannelSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byChannel[channelID]; ok {
		return s
	}
	return m.defaults
}

// Update applies mutate to the channel's settings and persists the result.
func (m *Manager) Update(channelID string, mutate func(*ChannelSettings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byChannel[channelID]
	if !ok {
		s = m.defaults
	}
	mutate(&s)
	m.byChannel[channelID] = s
	return m.saveLocked()
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}
	if err := sonic.Unmarshal(data, &m.byChannel); err != nil {
		return fmt.Errorf("parse settings %s: %w", m.path, err)
	}
	return nil
}

// saveLocked writes atomically via a temp file so a crash never truncates settings.
func (m *Manager) saveLocked() error {
	data, err := sonic.MarshalIndent(m.byChannel, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
