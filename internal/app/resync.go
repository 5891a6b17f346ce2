package app

import (
	"context"
	"time"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/eventlog"
	"github.com/dkeye/Presence/internal/wire"
	"github.com/rs/zerolog/log"
)

const DefaultSyncLimit = 500

// Resync answers sync:missed-messages from the event log. Backfill is best
// effort: anything older than the log's retention is gone, and a failing
// store yields an empty list rather than an error.
type Resync struct {
	Store eventlog.Store
	Limit int
	Now   func() time.Time
}

func NewResync(store eventlog.Store, limit int) *Resync {
	if limit <= 0 {
		limit = DefaultSyncLimit
	}
	return &Resync{Store: store, Limit: limit, Now: time.Now}
}

// Since never blocks the hub loop; callers run it on their own goroutine.
func (r *Resync) Since(ctx context.Context, req wire.SyncRequest) wire.SyncResponsePayload {
	out := wire.SyncResponsePayload{
		Messages: make([]domain.Message, 0),
		SyncedAt: r.Now().UnixMilli(),
	}
	if r.Store == nil {
		return out
	}
	msgs, err := r.Store.Since(ctx, eventlog.Query{
		Since:    time.UnixMilli(req.Since),
		Channels: req.ChannelIDs,
		Limit:    r.Limit,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.resync").Int64("since", req.Since).Msg("missed message query failed")
		return out
	}
	out.Messages = append(out.Messages, msgs...)
	log.Debug().Str("module", "app.resync").Int64("since", req.Since).Int("messages", len(out.Messages)).Msg("resync served")
	return out
}
