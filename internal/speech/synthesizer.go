package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/tempfiles"
)

// Backend is an interchangeable text-to-speech implementation writing one
// audio file per call. Backends pre-truncate input to their own limits and
// must fail cleanly on empty input.
type Backend interface {
	Name() string
	Synthesize(ctx context.Context, text, voice, outPath string) error
}

// Concatenator joins ordered audio files into one, preserving order and
// duration, and fails cleanly rather than truncating.
type Concatenator interface {
	Concat(ctx context.Context, inputs []string, outPath string) error
}

type ArtifactKind string

const (
	KindSingle   ArtifactKind = "single"
	KindCombined ArtifactKind = "combined"
	KindChunks   ArtifactKind = "chunks"
)

// Artifact is the audio output of one synthesized reply. Files are ordered;
// for single and combined there is exactly one.
type Artifact struct {
	Kind      ArtifactKind
	SessionID string
	Files     []string
}

// ErrNoAudioProduced is returned when every chunk of a reply failed synthesis.
var ErrNoAudioProduced = errors.New("no audio produced")

// SynthesisError reports a chunk that failed on both the requested backend
// and the default fallback.
type SynthesisError struct {
	Backend  string
	Fallback string
	Err      error
}

func (e *SynthesisError) Error() string {
	if e.Fallback != "" && e.Fallback != e.Backend {
		return fmt.Sprintf("synthesis failed on %s and fallback %s: %v", e.Backend, e.Fallback, e.Err)
	}
	return fmt.Sprintf("synthesis failed on %s: %v", e.Backend, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// SynthesizerConfig wires backends and limits.
type SynthesizerConfig struct {
	Backends     []Backend
	Default      Backend // fixed fallback backend
	DefaultVoice string
	Concat       Concatenator
	Temp         *tempfiles.Dir
	Metrics      *observability.Metrics
	CallTimeout  time.Duration
	MaxChunkLen  int
	MinChunkLen  int
	MaxReplyLen  int
}

// Synthesizer turns reply text into playable audio files with per-chunk
// backend fallback and ordered concatenation.
type Synthesizer struct {
	backends     map[string]Backend
	fallback     Backend
	defaultVoice string
	concat       Concatenator
	temp         *tempfiles.Dir
	metrics      *observability.Metrics
	callTimeout  time.Duration
	maxChunkLen  int
	minChunkLen  int
	maxReplyLen  int
}

func NewSynthesizer(cfg SynthesizerConfig) *Synthesizer {
	backends := make(map[string]Backend, len(cfg.Backends))
	for _, b := range cfg.Backends {
		backends[b.Name()] = b
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.MaxChunkLen <= 0 {
		cfg.MaxChunkLen = 1000
	}
	if cfg.MinChunkLen <= 0 {
		cfg.MinChunkLen = 50
	}
	if cfg.MaxReplyLen <= 0 {
		cfg.MaxReplyLen = 4000
	}
	return &Synthesizer{
		backends:     backends,
		fallback:     cfg.Default,
		defaultVoice: cfg.DefaultVoice,
		concat:       cfg.Concat,
		temp:         cfg.Temp,
		metrics:      cfg.Metrics,
		callTimeout:  cfg.CallTimeout,
		maxChunkLen:  cfg.MaxChunkLen,
		minChunkLen:  cfg.MinChunkLen,
		maxReplyLen:  cfg.MaxReplyLen,
	}
}

// Synthesize renders one chunk on the requested backend, retrying exactly
// once on the fixed default backend and voice before giving up.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voice, backendName string) (string, error) {
	sessionID := uuid.NewString()
	path, err := s.synthesizeChunk(ctx, text, voice, backendName, sessionID, 0)
	if err != nil {
		return "", err
	}
	return path, nil
}

func (s *Synthesizer) synthesizeChunk(ctx context.Context, text, voice, backendName, sessionID string, seq int) (string, error) {
	primary := s.resolveBackend(backendName)
	outPath := s.temp.Path(sessionID, seq, "mp3")

	err := s.invoke(ctx, primary, text, voice, outPath)
	if err == nil {
		s.countChunk(primary.Name(), "ok")
		return outPath, nil
	}
	s.countChunk(primary.Name(), "failed")

	if primary.Name() == s.fallback.Name() {
		return "", &SynthesisError{Backend: primary.Name(), Err: err}
	}

	log.Printf("tts backend %s failed (%v), retrying chunk on %s", primary.Name(), err, s.fallback.Name())
	tempfiles.Remove(outPath)

	fbErr := s.invoke(ctx, s.fallback, text, s.defaultVoice, outPath)
	if fbErr != nil {
		s.countChunk(s.fallback.Name(), "failed")
		tempfiles.Remove(outPath)
		return "", &SynthesisError{
			Backend:  primary.Name(),
			Fallback: s.fallback.Name(),
			Err:      fmt.Errorf("primary: %v; fallback: %w", err, fbErr),
		}
	}
	s.countChunk(s.fallback.Name(), "ok")
	return outPath, nil
}

// SynthesizeReply chunks a reply and renders each chunk independently.
// Failed chunks are dropped. Multiple successful chunks are concatenated in
// order; if concatenation fails the ordered chunk files are returned instead.
func (s *Synthesizer) SynthesizeReply(ctx context.Context, replyText, voice, backendName string) (*Artifact, error) {
	chunks := SplitReply(replyText, s.maxChunkLen, s.minChunkLen, s.maxReplyLen)
	if len(chunks) == 0 {
		return nil, ErrNoAudioProduced
	}

	sessionID := uuid.NewString()
	var files []string
	for i, chunk := range chunks {
		path, err := s.synthesizeChunk(ctx, chunk, voice, backendName, sessionID, i)
		if err != nil {
			log.Printf("dropping chunk %d of reply %s: %v", i, sessionID, err)
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		s.temp.PurgeSession(sessionID)
		return nil, fmt.Errorf("%w: all %d chunks failed", ErrNoAudioProduced, len(chunks))
	}

	if len(files) == 1 {
		return &Artifact{Kind: KindSingle, SessionID: sessionID, Files: files}, nil
	}

	combined := s.temp.Path(sessionID, len(chunks), "mp3")
	concatCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	err := s.concat.Concat(concatCtx, files, combined)
	cancel()
	if err != nil {
		s.countConcat("failed")
		log.Printf("concatenation failed for reply %s, playing %d chunk files instead: %v", sessionID, len(files), err)
		tempfiles.Remove(combined)
		return &Artifact{Kind: KindChunks, SessionID: sessionID, Files: files}, nil
	}
	s.countConcat("ok")

	for _, f := range files {
		tempfiles.Remove(f)
	}
	return &Artifact{Kind: KindCombined, SessionID: sessionID, Files: []string{combined}}, nil
}

// Cleanup deletes every file still referenced by an artifact, for callers
// that end up not playing it.
func (s *Synthesizer) Cleanup(a *Artifact) {
	if a == nil {
		return
	}
	s.temp.PurgeSession(a.SessionID)
}

func (s *Synthesizer) resolveBackend(name string) Backend {
	if b, ok := s.backends[name]; ok {
		return b
	}
	return s.fallback
}

func (s *Synthesizer) invoke(ctx context.Context, b Backend, text, voice, outPath string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	started := time.Now()
	err := b.Synthesize(callCtx, text, voice, outPath)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveSynthesisLatency(time.Since(started))
	}

	info, statErr := os.Stat(outPath)
	if statErr != nil || info.Size() == 0 {
		return fmt.Errorf("backend %s produced no audio file", b.Name())
	}
	return nil
}

func (s *Synthesizer) countChunk(backendName, outcome string) {
	if s.metrics != nil {
		s.metrics.SynthesisChunks.WithLabelValues(backendName, outcome).Inc()
	}
}

func (s *Synthesizer) countConcat(outcome string) {
	if s.metrics != nil {
		s.metrics.Concatenations.WithLabelValues(outcome).Inc()
	}
}
