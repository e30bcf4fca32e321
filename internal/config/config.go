package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the Aria reply service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	SettingsPath string

	TempDir           string
	TempFileMaxAge    time.Duration
	TempSweepInterval time.Duration

	ConversationMaxEntries    int
	ConversationMaxAge        time.Duration
	ConversationSweepInterval time.Duration
	TextHistoryWindow         int
	VoiceHistoryWindow        int

	GroqAPIKey        string
	OpenRouterAPIKey  string
	HuggingFaceAPIKey string
	ProviderTimeout   time.Duration
	ProviderMaxTokens int

	ElevenLabsAPIKey    string
	ElevenLabsWSBaseURL string
	EdgeTTSCLI          string
	FFmpegCLI           string
	SynthesisTimeout    time.Duration
	MaxChunkLen         int
	MinChunkLen         int
	MaxReplyLen         int

	VoiceInactivityTimeout time.Duration
	VoiceReadyTimeout      time.Duration

	SearchBaseURL string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":3000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "aria"),
		SettingsPath:     envOrDefault("APP_SETTINGS_PATH", "data/settings.json"),
		TempDir:          envOrDefault("APP_TEMP_DIR", "temp"),

		EdgeTTSCLI:          envOrDefault("EDGE_TTS_CLI", "edge-tts"),
		FFmpegCLI:           envOrDefault("FFMPEG_CLI", "ffmpeg"),
		ElevenLabsWSBaseURL: envOrDefault("ELEVENLABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		SearchBaseURL:       envOrDefault("SEARCH_BASE_URL", "https://api.duckduckgo.com"),

		GroqAPIKey:        envTrimmed("GROQ_API_KEY"),
		OpenRouterAPIKey:  envTrimmed("OPENROUTER_API_KEY"),
		HuggingFaceAPIKey: envTrimmed("HUGGINGFACE_API_KEY"),
		ElevenLabsAPIKey:  envTrimmed("ELEVENLABS_API_KEY"),
		DatabaseURL:       envTrimmed("DATABASE_URL"),

		ShutdownTimeout:           15 * time.Second,
		TempFileMaxAge:            30 * time.Minute,
		TempSweepInterval:         5 * time.Minute,
		ConversationMaxEntries:    20,
		ConversationMaxAge:        time.Hour,
		ConversationSweepInterval: 5 * time.Minute,
		TextHistoryWindow:         50,
		VoiceHistoryWindow:        10,
		ProviderTimeout:           60 * time.Second,
		ProviderMaxTokens:         500,
		SynthesisTimeout:          30 * time.Second,
		MaxChunkLen:               1000,
		MinChunkLen:               50,
		MaxReplyLen:               4000,
		VoiceInactivityTimeout:    5 * time.Minute,
		VoiceReadyTimeout:         30 * time.Second,
	}

	var err error
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"APP_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"APP_TEMP_FILE_MAX_AGE", &cfg.TempFileMaxAge},
		{"APP_TEMP_SWEEP_INTERVAL", &cfg.TempSweepInterval},
		{"CONVERSATION_MAX_AGE", &cfg.ConversationMaxAge},
		{"CONVERSATION_SWEEP_INTERVAL", &cfg.ConversationSweepInterval},
		{"PROVIDER_TIMEOUT", &cfg.ProviderTimeout},
		{"TTS_TIMEOUT", &cfg.SynthesisTimeout},
		{"VOICE_INACTIVITY_TIMEOUT", &cfg.VoiceInactivityTimeout},
		{"VOICE_READY_TIMEOUT", &cfg.VoiceReadyTimeout},
	} {
		*d.dst, err = durationFromEnv(d.key, *d.dst)
		if err != nil {
			return Config{}, err
		}
	}

	for _, n := range []struct {
		key string
		dst *int
	}{
		{"CONVERSATION_MAX_ENTRIES", &cfg.ConversationMaxEntries},
		{"CONVERSATION_TEXT_WINDOW", &cfg.TextHistoryWindow},
		{"CONVERSATION_VOICE_WINDOW", &cfg.VoiceHistoryWindow},
		{"PROVIDER_MAX_TOKENS", &cfg.ProviderMaxTokens},
		{"TTS_MAX_CHUNK_LEN", &cfg.MaxChunkLen},
		{"TTS_MIN_CHUNK_LEN", &cfg.MinChunkLen},
		{"TTS_MAX_REPLY_LEN", &cfg.MaxReplyLen},
	} {
		*n.dst, err = intFromEnv(n.key, *n.dst)
		if err != nil {
			return Config{}, err
		}
	}

	if cfg.ConversationMaxEntries <= 0 {
		return Config{}, fmt.Errorf("CONVERSATION_MAX_ENTRIES must be positive")
	}
	if cfg.TextHistoryWindow <= 0 || cfg.VoiceHistoryWindow <= 0 {
		return Config{}, fmt.Errorf("CONVERSATION_TEXT_WINDOW and CONVERSATION_VOICE_WINDOW must be positive")
	}
	if cfg.MinChunkLen <= 0 || cfg.MaxChunkLen <= cfg.MinChunkLen {
		return Config{}, fmt.Errorf("TTS_MAX_CHUNK_LEN must be greater than TTS_MIN_CHUNK_LEN, both positive")
	}
	if cfg.MaxReplyLen < cfg.MaxChunkLen {
		return Config{}, fmt.Errorf("TTS_MAX_REPLY_LEN must be at least TTS_MAX_CHUNK_LEN")
	}
	if cfg.VoiceInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("VOICE_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.VoiceReadyTimeout <= 0 {
		return Config{}, fmt.Errorf("VOICE_READY_TIMEOUT must be positive")
	}
	if cfg.ProviderMaxTokens <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_MAX_TOKENS must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration in %s: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer in %s: %w", key, err)
	}
	return n, nil
}
