package signal

import (
	"context"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/wire"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoinServer(ctx context.Context, c *WsSignalConn, env wire.Envelope) {
	id, err := wire.ID(env.Data)
	if err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	if err := ctl.Orch.SubscribeVoiceScope(ctx, c.id, domain.ServerID(id)); err != nil {
		ctl.sendError(c, env.Event, err)
	}
}

func (ctl *SignalWSController) handleLeaveServer(ctx context.Context, c *WsSignalConn, env wire.Envelope) {
	id, err := wire.ID(env.Data)
	if err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	if err := ctl.Orch.UnsubscribeVoiceScope(ctx, c.id, domain.ServerID(id)); err != nil {
		ctl.sendError(c, env.Event, err)
	}
}

func (ctl *SignalWSController) handleJoinChannel(ctx context.Context, c *WsSignalConn, env wire.Envelope) {
	var p wire.JoinChannelPayload
	if err := wire.Unmarshal(env.Data, &p); err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	if err := p.Validate(); err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	joined, err := ctl.Orch.JoinChannel(ctx, c.id, p)
	if err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	log.Debug().Str("module", "signal").Str("conn", string(c.id)).Str("channel", string(p.ChannelID)).Bool("joined", joined).Msg("join channel")
}

func (ctl *SignalWSController) handleLeaveChannel(ctx context.Context, c *WsSignalConn, env wire.Envelope) {
	var p wire.LeaveChannelPayload
	if err := wire.Unmarshal(env.Data, &p); err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	if err := p.Validate(); err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	left, err := ctl.Orch.LeaveChannel(ctx, c.id, p)
	if err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	log.Debug().Str("module", "signal").Str("conn", string(c.id)).Str("channel", string(p.ChannelID)).Bool("left", left).Msg("leave channel")
}
