package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ariavoice/aria/internal/config"
	"github.com/ariavoice/aria/internal/conversation"
	"github.com/ariavoice/aria/internal/httpapi"
	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/playback"
	"github.com/ariavoice/aria/internal/playback/localaudio"
	"github.com/ariavoice/aria/internal/provider"
	"github.com/ariavoice/aria/internal/search"
	"github.com/ariavoice/aria/internal/settings"
	"github.com/ariavoice/aria/internal/speech"
	"github.com/ariavoice/aria/internal/tempfiles"
)

type BuildResult struct {
	Config        config.Config
	API           *httpapi.Server
	Dispatcher    *provider.Dispatcher
	Synthesizer   *speech.Synthesizer
	Sessions      *playback.Manager
	Conversations *conversation.Store
	Settings      *settings.Manager
	Temp          *tempfiles.Dir
	Metrics       *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// Build wires the whole pipeline from config. The returned result carries
// the janitor-bearing services; callers start janitors with StartJanitors.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store := conversation.NewStore(cfg.ConversationMaxEntries, cfg.ConversationMaxAge)

	archive, err := conversation.NewArchive(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("transcript archive init failed: %w", err)
	}

	settingsMgr, err := settings.NewManager(cfg.SettingsPath, settings.Defaults())
	if err != nil {
		_ = archive.Close()
		return nil, fmt.Errorf("settings init failed: %w", err)
	}

	temp, err := tempfiles.New(cfg.TempDir, cfg.TempFileMaxAge)
	if err != nil {
		_ = archive.Close()
		return nil, fmt.Errorf("temp dir init failed: %w", err)
	}

	groq := provider.NewGroq(cfg.GroqAPIKey, cfg.ProviderMaxTokens)
	openrouter := provider.NewOpenRouter(cfg.OpenRouterAPIKey, cfg.ProviderMaxTokens)
	huggingface := provider.NewHuggingFace(cfg.HuggingFaceAPIKey)
	pollinations := provider.NewPollinations()

	dispatcher := provider.NewDispatcher(provider.DispatcherConfig{
		Callers:     []provider.Caller{groq, openrouter, huggingface, pollinations},
		Fallback:    pollinations,
		Store:       store,
		Archive:     archive,
		Settings:    settingsMgr,
		Searcher:    search.NewClient(cfg.SearchBaseURL),
		Metrics:     metrics,
		CallTimeout: cfg.ProviderTimeout,
		TextWindow:  cfg.TextHistoryWindow,
		VoiceWindow: cfg.VoiceHistoryWindow,
	})

	edge := speech.NewEdgeBackend(cfg.EdgeTTSCLI)
	elevenlabs := speech.NewElevenLabsBackend(cfg.ElevenLabsAPIKey, cfg.ElevenLabsWSBaseURL)
	pollinationsTTS := speech.NewPollinationsBackend("")

	synthesizer := speech.NewSynthesizer(speech.SynthesizerConfig{
		Backends:     []speech.Backend{edge, elevenlabs, pollinationsTTS},
		Default:      edge,
		DefaultVoice: settings.Defaults().TTSVoice,
		Concat:       speech.NewFFmpegConcatenator(cfg.FFmpegCLI),
		Temp:         temp,
		Metrics:      metrics,
		CallTimeout:  cfg.SynthesisTimeout,
		MaxChunkLen:  cfg.MaxChunkLen,
		MinChunkLen:  cfg.MinChunkLen,
		MaxReplyLen:  cfg.MaxReplyLen,
	})

	sessions := playback.NewManager(localaudio.NewDialer(), cfg.VoiceReadyTimeout, cfg.VoiceInactivityTimeout, metrics)

	api := httpapi.New(httpapi.Deps{
		Config:        cfg,
		Settings:      settingsMgr,
		Sessions:      sessions,
		Conversations: store,
		Metrics:       metrics,
		ConfiguredProviders: map[string]bool{
			"groq":         groq.Configured(),
			"openrouter":   openrouter.Configured(),
			"huggingface":  huggingface.Configured(),
			"pollinations": true,
		},
		ConfiguredBackends: map[string]bool{
			"edge":         true,
			"pollinations": true,
			"elevenlabs":   elevenlabs.Configured(),
		},
	})

	cleanup := func() error {
		sessions.Shutdown()
		return archive.Close()
	}

	return &BuildResult{
		Config:        cfg,
		API:           api,
		Dispatcher:    dispatcher,
		Synthesizer:   synthesizer,
		Sessions:      sessions,
		Conversations: store,
		Settings:      settingsMgr,
		Temp:          temp,
		Metrics:       metrics,
		Cleanup:       cleanup,
	}, nil
}

// StartJanitors launches the background sweeps that expire conversations,
// tear down idle voice sessions and delete stale temp files.
func (b *BuildResult) StartJanitors(ctx context.Context) {
	b.Conversations.StartJanitor(ctx, b.Config.ConversationSweepInterval)
	b.Temp.StartJanitor(ctx, b.Config.TempSweepInterval)
	b.Sessions.StartJanitor(ctx, 15*time.Second)
}
