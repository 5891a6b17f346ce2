package signal

import (
	"context"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/wire"
)

func (ctl *SignalWSController) handleChannelSubscribe(ctx context.Context, c *WsSignalConn, env wire.Envelope) {
	id, err := wire.ID(env.Data)
	if err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	if err := ctl.Orch.SubscribeChannel(ctx, c.id, domain.ChannelID(id)); err != nil {
		ctl.sendError(c, env.Event, err)
	}
}

func (ctl *SignalWSController) handleChannelUnsubscribe(ctx context.Context, c *WsSignalConn, env wire.Envelope) {
	id, err := wire.ID(env.Data)
	if err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	if err := ctl.Orch.UnsubscribeChannel(ctx, c.id, domain.ChannelID(id)); err != nil {
		ctl.sendError(c, env.Event, err)
	}
}

// handleTyping relays without rate limiting; senders debounce.
func (ctl *SignalWSController) handleTyping(ctx context.Context, c *WsSignalConn, env wire.Envelope) {
	var p wire.TypingPayload
	if err := wire.Unmarshal(env.Data, &p); err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	if err := p.Validate(); err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	if err := ctl.Orch.Typing(ctx, c.id, p); err != nil {
		ctl.sendError(c, env.Event, err)
	}
}
