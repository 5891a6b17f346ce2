// Package eventlog keeps recently published chat messages so reconnecting
// clients can backfill what they missed.
package eventlog

//go:generate mockgen -destination=eventlogmock/store.go -package=eventlogmock . Store

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Presence/internal/domain"
)

var ErrClosed = errors.New("event log closed")

// Query selects messages created at or after Since. An empty Channels
// matches every channel. Limit <= 0 means no limit.
type Query struct {
	Since    time.Time
	Channels []domain.ChannelID
	Limit    int
}

// Store is the persistence collaborator behind resync.
type Store interface {
	Append(ctx context.Context, msg domain.Message) error
	Since(ctx context.Context, q Query) ([]domain.Message, error)
	Close() error
}

func (q Query) matches(msg domain.Message) bool {
	if msg.CreatedAt.Before(q.Since) {
		return false
	}
	if len(q.Channels) == 0 {
		return true
	}
	for _, ch := range q.Channels {
		if ch == msg.ChannelID {
			return true
		}
	}
	return false
}
