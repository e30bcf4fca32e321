package playback

import "context"

type PlayerEventType string

const (
	PlayerStarted  PlayerEventType = "started"
	PlayerFinished PlayerEventType = "finished"
	PlayerErrored  PlayerEventType = "errored"
)

// PlayerEvent reports progress of one file on a player.
type PlayerEvent struct {
	Type PlayerEventType
	Path string
	Err  error
}

// Player plays one audio file at a time and reports completion through its
// event channel. Play must not be called again before the previous file
// finished or errored.
type Player interface {
	Play(path string) error
	Events() <-chan PlayerEvent
	Close() error
}

// Connection is an established voice channel attachment.
type Connection interface {
	NewPlayer() (Player, error)
	Close() error
}

// Dialer attaches to a voice channel. Implementations block until the
// connection is ready or ctx ends.
type Dialer interface {
	Dial(ctx context.Context, groupID, channelID string) (Connection, error)
}
