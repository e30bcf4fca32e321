package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ariavoice/aria/internal/tempfiles"
)

type stubBackend struct {
	name      string
	err       error
	failTexts map[string]bool
	calls     int
	lastText  string
	lastVoice string
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Synthesize(_ context.Context, text, voice, outPath string) error {
	b.calls++
	b.lastText = text
	b.lastVoice = voice
	if b.err != nil {
		return b.err
	}
	if b.failTexts[text] {
		return fmt.Errorf("%s: induced failure", b.name)
	}
	return os.WriteFile(outPath, []byte(b.name+": "+text), 0o644)
}

type stubConcat struct {
	err         error
	calls       int
	got         []string
	sawDeadline bool
}

func (c *stubConcat) Concat(ctx context.Context, inputs []string, outPath string) error {
	c.calls++
	c.got = append([]string(nil), inputs...)
	_, c.sawDeadline = ctx.Deadline()
	if c.err != nil {
		return c.err
	}
	var joined []byte
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		joined = append(joined, data...)
		joined = append(joined, '\n')
	}
	return os.WriteFile(outPath, joined, 0o644)
}

func newTestSynthesizer(t *testing.T, primary, fallback Backend, concat Concatenator) *Synthesizer {
	t.Helper()
	temp, err := tempfiles.New(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("tempfiles.New: %v", err)
	}
	backends := []Backend{fallback}
	if primary != nil {
		backends = append(backends, primary)
	}
	return NewSynthesizer(SynthesizerConfig{
		Backends:     backends,
		Default:      fallback,
		DefaultVoice: "default-voice",
		Concat:       concat,
		Temp:         temp,
		CallTimeout:  time.Second,
		MaxChunkLen:  80,
		MinChunkLen:  5,
		MaxReplyLen:  4000,
	})
}

func TestSynthesizeUsesRequestedBackend(t *testing.T) {
	primary := &stubBackend{name: "elevenlabs"}
	fallback := &stubBackend{name: "edge"}
	s := newTestSynthesizer(t, primary, fallback, &stubConcat{})

	path, err := s.Synthesize(context.Background(), "hello there", "rachel", "elevenlabs")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if primary.calls != 1 || fallback.calls != 0 {
		t.Fatalf("calls primary=%d fallback=%d, want 1/0", primary.calls, fallback.calls)
	}
	if primary.lastVoice != "rachel" {
		t.Fatalf("voice = %q, want rachel", primary.lastVoice)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "elevenlabs: hello there" {
		t.Fatalf("output = %q", data)
	}
}

func TestSynthesizeFallsBackOnceWithDefaultVoice(t *testing.T) {
	primary := &stubBackend{name: "elevenlabs", err: errors.New("quota exceeded")}
	fallback := &stubBackend{name: "edge"}
	s := newTestSynthesizer(t, primary, fallback, &stubConcat{})

	path, err := s.Synthesize(context.Background(), "hello there", "rachel", "elevenlabs")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("calls primary=%d fallback=%d, want 1/1", primary.calls, fallback.calls)
	}
	if fallback.lastVoice != "default-voice" {
		t.Fatalf("fallback voice = %q, want default-voice", fallback.lastVoice)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestSynthesizeFallbackAsPrimaryFailsWithoutRetry(t *testing.T) {
	fallback := &stubBackend{name: "edge", err: errors.New("cli missing")}
	s := newTestSynthesizer(t, nil, fallback, &stubConcat{})

	_, err := s.Synthesize(context.Background(), "hello there", "jenny", "edge")
	if err == nil {
		t.Fatal("expected error")
	}
	if fallback.calls != 1 {
		t.Fatalf("calls = %d, want 1", fallback.calls)
	}
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("error type = %T", err)
	}
	if synthErr.Backend != "edge" || synthErr.Fallback != "" {
		t.Fatalf("unexpected SynthesisError: %+v", synthErr)
	}
}

func TestSynthesizeUnknownBackendUsesDefault(t *testing.T) {
	fallback := &stubBackend{name: "edge"}
	s := newTestSynthesizer(t, nil, fallback, &stubConcat{})

	if _, err := s.Synthesize(context.Background(), "hello there", "jenny", "nope"); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if fallback.calls != 1 {
		t.Fatalf("calls = %d, want 1", fallback.calls)
	}
}

func TestSynthesizeRejectsEmptyOutput(t *testing.T) {
	primary := &stubBackend{name: "elevenlabs"}
	empty := &stubBackend{name: "edge"}
	s := newTestSynthesizer(t, primary, empty, &stubConcat{})
	// Both backends succeed but write nothing.
	primary.err = errors.New("down")
	s.backends["edge"] = backendFunc{name: "edge"}
	s.fallback = backendFunc{name: "edge"}

	_, err := s.Synthesize(context.Background(), "hello there", "rachel", "elevenlabs")
	if err == nil {
		t.Fatal("expected error for empty output file")
	}
	if !strings.Contains(err.Error(), "produced no audio") {
		t.Fatalf("error = %v", err)
	}
}

// backendFunc succeeds without writing any output file.
type backendFunc struct{ name string }

func (b backendFunc) Name() string { return b.name }

func (b backendFunc) Synthesize(context.Context, string, string, string) error { return nil }

func TestSynthesizeReplySingleChunk(t *testing.T) {
	fallback := &stubBackend{name: "edge"}
	concat := &stubConcat{}
	s := newTestSynthesizer(t, nil, fallback, concat)

	art, err := s.SynthesizeReply(context.Background(), "Just one short sentence.", "jenny", "edge")
	if err != nil {
		t.Fatalf("SynthesizeReply: %v", err)
	}
	if art.Kind != KindSingle {
		t.Fatalf("kind = %s, want %s", art.Kind, KindSingle)
	}
	if len(art.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(art.Files))
	}
	if concat.calls != 0 {
		t.Fatalf("concat called %d times for single chunk", concat.calls)
	}
}

func TestSynthesizeReplyConcatenatesInOrder(t *testing.T) {
	fallback := &stubBackend{name: "edge"}
	concat := &stubConcat{}
	s := newTestSynthesizer(t, nil, fallback, concat)

	reply := strings.Repeat("One more sentence follows right after this one ends. ", 6)
	art, err := s.SynthesizeReply(context.Background(), reply, "jenny", "edge")
	if err != nil {
		t.Fatalf("SynthesizeReply: %v", err)
	}
	if art.Kind != KindCombined {
		t.Fatalf("kind = %s, want %s", art.Kind, KindCombined)
	}
	if len(art.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(art.Files))
	}
	if concat.calls != 1 {
		t.Fatalf("concat calls = %d, want 1", concat.calls)
	}
	if !concat.sawDeadline {
		t.Fatal("concat ran without a deadline")
	}
	for i := 1; i < len(concat.got); i++ {
		if concat.got[i-1] >= concat.got[i] {
			t.Fatalf("concat inputs out of order: %v", concat.got)
		}
	}
	// Intermediate chunk files are removed after a successful concat.
	for _, in := range concat.got {
		if _, err := os.Stat(in); !os.IsNotExist(err) {
			t.Fatalf("chunk file %s still present after concat", in)
		}
	}
}

func TestSynthesizeReplyConcatFailureKeepsChunks(t *testing.T) {
	fallback := &stubBackend{name: "edge"}
	concat := &stubConcat{err: errors.New("ffmpeg missing")}
	s := newTestSynthesizer(t, nil, fallback, concat)

	reply := strings.Repeat("One more sentence follows right after this one ends. ", 6)
	art, err := s.SynthesizeReply(context.Background(), reply, "jenny", "edge")
	if err != nil {
		t.Fatalf("SynthesizeReply: %v", err)
	}
	if art.Kind != KindChunks {
		t.Fatalf("kind = %s, want %s", art.Kind, KindChunks)
	}
	if len(art.Files) < 2 {
		t.Fatalf("files = %d, want several", len(art.Files))
	}
	for _, f := range art.Files {
		if _, err := os.Stat(f); err != nil {
			t.Fatalf("chunk file %s missing: %v", f, err)
		}
	}
}

func TestSynthesizeReplyDropsFailedChunks(t *testing.T) {
	fallback := &stubBackend{name: "edge", failTexts: map[string]bool{}}
	concat := &stubConcat{}
	s := newTestSynthesizer(t, nil, fallback, concat)

	reply := strings.Repeat("One more sentence follows right after this one ends. ", 6)
	chunks := SplitReply(reply, 80, 5, 4000)
	if len(chunks) < 3 {
		t.Fatalf("need at least 3 chunks, got %d", len(chunks))
	}
	fallback.failTexts[chunks[1]] = true

	art, err := s.SynthesizeReply(context.Background(), reply, "jenny", "edge")
	if err != nil {
		t.Fatalf("SynthesizeReply: %v", err)
	}
	if art.Kind != KindCombined {
		t.Fatalf("kind = %s, want %s", art.Kind, KindCombined)
	}
	if len(concat.got) != len(chunks)-1 {
		t.Fatalf("concat inputs = %d, want %d", len(concat.got), len(chunks)-1)
	}
}

func TestSynthesizeReplyAllChunksFail(t *testing.T) {
	fallback := &stubBackend{name: "edge", err: errors.New("down")}
	s := newTestSynthesizer(t, nil, fallback, &stubConcat{})

	_, err := s.SynthesizeReply(context.Background(), "A reply that will never become audio today.", "jenny", "edge")
	if !errors.Is(err, ErrNoAudioProduced) {
		t.Fatalf("error = %v, want ErrNoAudioProduced", err)
	}
}

func TestSynthesizeReplyEmptyText(t *testing.T) {
	fallback := &stubBackend{name: "edge"}
	s := newTestSynthesizer(t, nil, fallback, &stubConcat{})

	if _, err := s.SynthesizeReply(context.Background(), "   ", "jenny", "edge"); !errors.Is(err, ErrNoAudioProduced) {
		t.Fatalf("error = %v, want ErrNoAudioProduced", err)
	}
}
