package provider

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ariavoice/aria/internal/conversation"
	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/settings"
)

// Searcher enriches a query with web-search context before dispatch.
// Implementations are failure tolerant; an absent result is not an error.
type Searcher interface {
	Search(ctx context.Context, query string) (snippet string, ok bool, err error)
}

// Result is the outcome of one successful dispatch.
type Result struct {
	Text     string
	Provider string
	Model    string
	Latency  time.Duration
	Searched bool
}

// DispatcherConfig wires the dispatcher's collaborators and limits.
type DispatcherConfig struct {
	Callers       []Caller
	Fallback      Caller
	FallbackModel string
	Store         *conversation.Store
	Archive       conversation.Archive
	Settings      *settings.Manager
	Searcher      Searcher // optional
	Metrics       *observability.Metrics
	CallTimeout   time.Duration
	TextWindow    int
	VoiceWindow   int
}

// Dispatcher routes one query to the channel's primary backend with a single
// fallback retry, and records the exchange in the conversation store.
type Dispatcher struct {
	callers       map[string]Caller
	fallback      Caller
	fallbackModel string
	store         *conversation.Store
	archive       conversation.Archive
	settings      *settings.Manager
	searcher      Searcher
	metrics       *observability.Metrics
	callTimeout   time.Duration
	textWindow    int
	voiceWindow   int
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	callers := make(map[string]Caller, len(cfg.Callers))
	for _, c := range cfg.Callers {
		callers[c.Name()] = c
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.TextWindow <= 0 {
		cfg.TextWindow = 50
	}
	if cfg.VoiceWindow <= 0 {
		cfg.VoiceWindow = 10
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = "openai"
	}
	if cfg.Archive == nil {
		cfg.Archive = conversation.NoopArchive{}
	}
	return &Dispatcher{
		callers:       callers,
		fallback:      cfg.Fallback,
		fallbackModel: cfg.FallbackModel,
		store:         cfg.Store,
		archive:       cfg.Archive,
		settings:      cfg.Settings,
		searcher:      cfg.Searcher,
		metrics:       cfg.Metrics,
		callTimeout:   cfg.CallTimeout,
		textWindow:    cfg.TextWindow,
		voiceWindow:   cfg.VoiceWindow,
	}
}

// Respond answers one query. On primary failure it retries exactly once
// against the fixed fallback backend. The conversation gains the user query
// and assistant reply only on success.
func (d *Dispatcher) Respond(ctx context.Context, channelID, userID, queryText string, voiceMode bool) (Result, error) {
	started := time.Now()

	st := d.settings.Lookup(channelID)

	window := d.textWindow
	if voiceMode {
		window = d.voiceWindow
	}
	history := toMessages(d.store.Recent(channelID, userID, window))

	systemPrompt := st.SystemPrompt
	searched := false
	if d.searcher != nil {
		extra, ok, err := d.searcher.Search(ctx, queryText)
		switch {
		case err != nil:
			log.Printf("search augmentation failed, continuing without it: %v", err)
		case ok && strings.TrimSpace(extra) != "":
			systemPrompt = systemPrompt + "\n\nRelevant context from a web search:\n" + extra
			searched = true
		}
	}

	primary, primaryModel := d.resolvePrimary(st)

	text, err := d.call(ctx, primary, primaryModel, queryText, history, systemPrompt)
	served, servedModel := primary, primaryModel
	if err != nil {
		d.countError(primary.Name(), err)
		attempts := []Attempt{{Provider: primary.Name(), Model: primaryModel, Err: err}}

		if primary.Name() == d.fallback.Name() {
			d.countQuery(primary.Name(), "failed")
			return Result{}, &AllProvidersFailedError{Attempts: attempts}
		}

		if d.metrics != nil {
			d.metrics.ProviderFallbacks.WithLabelValues(primary.Name()).Inc()
		}
		log.Printf("provider %s failed (%v), retrying on %s", primary.Name(), err, d.fallback.Name())

		text, err = d.call(ctx, d.fallback, d.fallbackModel, queryText, history, systemPrompt)
		if err != nil {
			d.countError(d.fallback.Name(), err)
			d.countQuery(d.fallback.Name(), "failed")
			attempts = append(attempts, Attempt{Provider: d.fallback.Name(), Model: d.fallbackModel, Err: err})
			return Result{}, &AllProvidersFailedError{Attempts: attempts}
		}
		served, servedModel = d.fallback, d.fallbackModel
	}

	d.store.Append(channelID, userID, conversation.RoleUser, queryText)
	d.store.Append(channelID, userID, conversation.RoleAssistant, text)
	d.archiveTurns(ctx, channelID, userID, queryText, text, served.Name())

	latency := time.Since(started)
	d.countQuery(served.Name(), "ok")
	if d.metrics != nil {
		d.metrics.ObserveReplyLatency(latency)
	}

	return Result{
		Text:     text,
		Provider: served.Name(),
		Model:    servedModel,
		Latency:  latency,
		Searched: searched,
	}, nil
}

func (d *Dispatcher) resolvePrimary(st settings.ChannelSettings) (Caller, string) {
	if c, ok := d.callers[st.AIProvider]; ok {
		return c, st.AIModel
	}
	// Unknown backend in settings: treat the fallback as primary.
	return d.fallback, d.fallbackModel
}

func (d *Dispatcher) call(ctx context.Context, c Caller, model, query string, history []Message, systemPrompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	return c.Call(callCtx, model, query, history, systemPrompt)
}

func (d *Dispatcher) archiveTurns(ctx context.Context, channelID, userID, query, reply, providerName string) {
	for _, rec := range []conversation.TurnRecord{
		{ChannelID: channelID, UserID: userID, Role: conversation.RoleUser, Content: query},
		{ChannelID: channelID, UserID: userID, Role: conversation.RoleAssistant, Content: reply, Provider: providerName},
	} {
		if err := d.archive.SaveTurn(ctx, rec); err != nil {
			log.Printf("transcript archive write failed: %v", err)
			return
		}
	}
}

func (d *Dispatcher) countQuery(providerName, outcome string) {
	if d.metrics != nil {
		d.metrics.Queries.WithLabelValues(providerName, outcome).Inc()
	}
}

func (d *Dispatcher) countError(providerName string, err error) {
	if d.metrics == nil {
		return
	}
	d.metrics.ProviderErrors.WithLabelValues(providerName, errorKind(err)).Inc()
}

func errorKind(err error) string {
	var callErr *CallError
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.As(err, &callErr) && callErr.RateLimited:
		return "rate_limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "call_failed"
	}
}

func toMessages(entries []conversation.Entry) []Message {
	out := make([]Message, 0, len(entries))
	for _, e := range entries {
		out = append(out, Message{Role: string(e.Role), Content: e.Content})
	}
	return out
}
