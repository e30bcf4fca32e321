package playback

import (
	"errors"
	"log"
	"sync"

	"github.com/ariavoice/aria/internal/observability"
	"github.com/ariavoice/aria/internal/tempfiles"
)

var ErrQueueClosed = errors.New("playback queue closed")

// Item is one synthesized reply queued for playback. Files play in order
// and each file is deleted as soon as it finishes.
type Item struct {
	ID    string
	Files []string
}

// Queue serializes playback on one channel. Items play strictly in enqueue
// order; within an item, files play in slice order.
type Queue struct {
	mu          sync.Mutex
	channelID   string
	player      Player
	items       []*Item
	current     []string // files of the playing item not yet started
	currentPath string   // file handed to the player, empty when idle
	playing     bool
	closed      bool
	done        chan struct{}

	onActivity func()
	metrics    *observability.Metrics
}

// NewQueue starts the event loop on player. onActivity fires whenever a
// file starts playing and may be nil.
func NewQueue(channelID string, player Player, onActivity func(), metrics *observability.Metrics) *Queue {
	q := &Queue{
		channelID:  channelID,
		player:     player,
		done:       make(chan struct{}),
		onActivity: onActivity,
		metrics:    metrics,
	}
	go q.loop()
	return q
}

// Enqueue appends an item and starts playing if the queue was idle.
func (q *Queue) Enqueue(item *Item) error {
	if item == nil || len(item.Files) == 0 {
		return errors.New("empty playback item")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, item)
	q.gaugeDepth()
	if !q.playing {
		q.startNextLocked()
	}
	return nil
}

// Depth reports queued items, including the one playing.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if q.playing {
		n++
	}
	return n
}

// Idle reports whether nothing is playing or queued.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.playing && len(q.items) == 0
}

// Drain discards queued items and their files. The file currently playing
// is left to finish.
func (q *Queue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.discardPendingLocked()
	q.gaugeDepth()
}

// Close stops the queue, deletes all pending files including the one at
// the player, and closes the player.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.discardPendingLocked()
	if q.currentPath != "" {
		tempfiles.Remove(q.currentPath)
		q.currentPath = ""
	}
	q.gaugeDepth()
	q.mu.Unlock()

	err := q.player.Close()
	<-q.done
	return err
}

func (q *Queue) loop() {
	defer close(q.done)
	for ev := range q.player.Events() {
		switch ev.Type {
		case PlayerStarted:
			if q.onActivity != nil {
				q.onActivity()
			}
		case PlayerFinished:
			tempfiles.Remove(ev.Path)
			q.advance()
		case PlayerErrored:
			log.Printf("playback error on channel %s for %s: %v", q.channelID, ev.Path, ev.Err)
			tempfiles.Remove(ev.Path)
			q.advance()
		}
	}
}

func (q *Queue) advance() {
	q.mu.Lock()
	q.currentPath = ""
	q.playing = false
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.startNextLocked()

	// Going idle counts as activity so the session gets the full idle
	// grace after playback ends, not from when the last file started.
	if !q.playing && len(q.items) == 0 && len(q.current) == 0 && q.onActivity != nil {
		q.onActivity()
	}
	q.mu.Unlock()
}

func (q *Queue) startNextLocked() {
	for {
		if len(q.current) == 0 {
			if len(q.items) == 0 {
				q.gaugeDepth()
				return
			}
			q.current = q.items[0].Files
			q.items = q.items[1:]
			q.gaugeDepth()
		}

		path := q.current[0]
		q.current = q.current[1:]
		if err := q.player.Play(path); err != nil {
			log.Printf("cannot play %s on channel %s: %v", path, q.channelID, err)
			tempfiles.Remove(path)
			continue
		}
		q.currentPath = path
		q.playing = true
		return
	}
}

func (q *Queue) discardPendingLocked() {
	for _, f := range q.current {
		tempfiles.Remove(f)
	}
	q.current = nil
	for _, item := range q.items {
		for _, f := range item.Files {
			tempfiles.Remove(f)
		}
	}
	q.items = nil
}

func (q *Queue) gaugeDepth() {
	if q.metrics != nil {
		q.metrics.QueueDepth.WithLabelValues(q.channelID).Set(float64(len(q.items)))
	}
}
