// Package localaudio plays synthesized audio on the machine's speakers.
// It backs the playback interfaces when no remote voice transport is wired.
package localaudio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"

	"github.com/ariavoice/aria/internal/playback"
)

// The speaker keeps the rate of its first Init, so everything is resampled
// to one fixed rate.
const speakerRate = beep.SampleRate(44100)

var speakerInit sync.Once

// Dialer hands out speaker-backed connections. Group and channel IDs are
// accepted for interface compatibility; all sessions share the one speaker.
type Dialer struct{}

func NewDialer() *Dialer { return &Dialer{} }

func (d *Dialer) Dial(_ context.Context, _, _ string) (playback.Connection, error) {
	return &connection{}, nil
}

type connection struct{}

func (c *connection) NewPlayer() (playback.Player, error) {
	return &speakerPlayer{events: make(chan playback.PlayerEvent, 16)}, nil
}

func (c *connection) Close() error { return nil }

type speakerPlayer struct {
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	events    chan playback.PlayerEvent
}

func (p *speakerPlayer) Events() <-chan playback.PlayerEvent { return p.events }

func (p *speakerPlayer) Play(path string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("player closed")
	}
	p.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode mp3 %s: %w", path, err)
	}

	var initErr error
	speakerInit.Do(func() {
		initErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	if initErr != nil {
		streamer.Close()
		return fmt.Errorf("init speaker: %w", initErr)
	}

	p.emit(playback.PlayerEvent{Type: playback.PlayerStarted, Path: path})
	resampled := beep.Resample(4, format.SampleRate, speakerRate, streamer)
	speaker.Play(beep.Seq(resampled, beep.Callback(func() {
		streamer.Close()
		p.emit(playback.PlayerEvent{Type: playback.PlayerFinished, Path: path})
	})))
	return nil
}

func (p *speakerPlayer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.closeOnce.Do(func() {
		speaker.Clear()
		close(p.events)
	})
	return nil
}

// emit delivers the event, blocking until the consumer drains it. The
// mutex keeps Close from closing the channel while a send is in flight.
func (p *speakerPlayer) emit(ev playback.PlayerEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.events <- ev
}
