package conversation

import (
	"context"
	"strings"
	"time"
)

// TurnRecord is one archived conversational turn.
type TurnRecord struct {
	ID        string
	ChannelID string
	UserID    string
	Role      Role
	Content   string
	Provider  string
	CreatedAt time.Time
}

// Archive persists exchanged turns outside the bounded in-memory history.
// The in-memory Store stays canonical; archival failures never fail a reply.
type Archive interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	Close() error
}

// NewArchive creates a postgres-backed archive when configured, otherwise a no-op.
func NewArchive(ctx context.Context, databaseURL string) (Archive, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NoopArchive{}, nil
	}
	return NewPostgresArchive(ctx, databaseURL)
}

// NoopArchive discards every record.
type NoopArchive struct{}

func (NoopArchive) SaveTurn(context.Context, TurnRecord) error { return nil }
func (NoopArchive) Close() error                               { return nil }
