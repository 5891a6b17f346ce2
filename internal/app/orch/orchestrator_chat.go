package orch

import (
	"context"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/wire"
	"github.com/rs/zerolog/log"
)

// PublishMessage fans msg out to its channel, then hands it to the recorder.
// The recorder runs outside the loop so storage never delays delivery.
func (o *Orchestrator) PublishMessage(ctx context.Context, msg domain.Message) (core.PublishResult, error) {
	var res core.PublishResult
	if err := o.do(ctx, func() { res = o.Presence.PublishMessage(msg) }); err != nil {
		return core.PublishResult{}, err
	}
	if o.Recorder != nil {
		o.Recorder.Record(msg)
	}
	log.Info().Str("module", "orch").Str("channel", string(msg.ChannelID)).Str("message", msg.ID).Int("sent_to", res.SendTo).Msg("message published")
	return res, nil
}

func (o *Orchestrator) Heartbeat(ctx context.Context, id core.ConnID, timestamp int64) error {
	var err error
	if derr := o.do(ctx, func() { err = o.Presence.Heartbeat(id, timestamp) }); derr != nil {
		return derr
	}
	return err
}

// MissedMessages answers a resync request. It queries the event log on the
// caller's goroutine and never enters the loop.
func (o *Orchestrator) MissedMessages(ctx context.Context, req wire.SyncRequest) wire.SyncResponsePayload {
	return o.Resync.Since(ctx, req)
}
