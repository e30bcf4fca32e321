package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ariavoice/aria/internal/config"
	"github.com/ariavoice/aria/internal/conversation"
	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/playback"
	"github.com/ariavoice/aria/internal/provider"
	"github.com/ariavoice/aria/internal/settings"
	"github.com/ariavoice/aria/internal/speech"
)

// Deps are the services the status surface reports on and the settings
// endpoints mutate.
type Deps struct {
	Config        config.Config
	Settings      *settings.Manager
	Sessions      *playback.Manager
	Conversations *conversation.Store
	Metrics       *observability.Metrics

	// Configured keys per catalog, filled in by the app wiring.
	ConfiguredProviders map[string]bool
	ConfiguredBackends  map[string]bool
}

type Server struct {
	deps Deps
}

func New(deps Deps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/catalog/providers", s.handleProviderCatalog)
	r.Get("/v1/catalog/voices", s.handleVoiceCatalog)
	r.Get("/v1/channels/{channelID}/settings", s.handleGetSettings)
	r.Put("/v1/channels/{channelID}/settings", s.handlePutSettings)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type statusResponse struct {
	Status              string          `json:"status"`
	ActiveVoiceSessions int             `json:"active_voice_sessions"`
	ActiveConversations int             `json:"active_conversations"`
	Providers           map[string]bool `json:"providers"`
	TTSBackends         map[string]bool `json:"tts_backends"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status:      "ok",
		Providers:   s.deps.ConfiguredProviders,
		TTSBackends: s.deps.ConfiguredBackends,
	}
	if s.deps.Sessions != nil {
		resp.ActiveVoiceSessions = s.deps.Sessions.ActiveCount()
	}
	if s.deps.Conversations != nil {
		resp.ActiveConversations = s.deps.Conversations.ActiveCount()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProviderCatalog(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"providers": provider.Catalog()})
}

func (s *Server) handleVoiceCatalog(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"backends": speech.Catalog()})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	channelID := strings.TrimSpace(chi.URLParam(r, "channelID"))
	if channelID == "" {
		respondError(w, http.StatusBadRequest, "invalid_channel_id", "missing channel id")
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Settings.Lookup(channelID))
}

type settingsPatch struct {
	AIProvider   *string `json:"ai_provider"`
	AIModel      *string `json:"ai_model"`
	TTSBackend   *string `json:"tts_backend"`
	TTSVoice     *string `json:"tts_voice"`
	Mode         *string `json:"mode"`
	SystemPrompt *string `json:"system_prompt"`
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	channelID := strings.TrimSpace(chi.URLParam(r, "channelID"))
	if channelID == "" {
		respondError(w, http.StatusBadRequest, "invalid_channel_id", "missing channel id")
		return
	}

	var patch settingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if patch.AIProvider != nil {
		if _, ok := provider.CatalogInfo(*patch.AIProvider); !ok {
			respondError(w, http.StatusBadRequest, "unknown_provider", "unknown AI provider "+*patch.AIProvider)
			return
		}
	}
	if patch.TTSBackend != nil {
		if _, ok := speech.CatalogInfo(*patch.TTSBackend); !ok {
			respondError(w, http.StatusBadRequest, "unknown_backend", "unknown TTS backend "+*patch.TTSBackend)
			return
		}
	}
	if patch.Mode != nil {
		switch settings.Mode(*patch.Mode) {
		case settings.ModeText, settings.ModeVoice:
		default:
			respondError(w, http.StatusBadRequest, "invalid_mode", "mode must be text or voice")
			return
		}
	}

	err := s.deps.Settings.Update(channelID, func(cs *settings.ChannelSettings) {
		if patch.AIProvider != nil {
			cs.AIProvider = *patch.AIProvider
		}
		if patch.AIModel != nil {
			cs.AIModel = *patch.AIModel
		}
		if patch.TTSBackend != nil {
			cs.TTSBackend = *patch.TTSBackend
		}
		if patch.TTSVoice != nil {
			cs.TTSVoice = *patch.TTSVoice
		}
		if patch.Mode != nil {
			cs.Mode = settings.Mode(*patch.Mode)
		}
		if patch.SystemPrompt != nil {
			cs.SystemPrompt = *patch.SystemPrompt
		}
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "settings_persist_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Settings.Lookup(channelID))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
