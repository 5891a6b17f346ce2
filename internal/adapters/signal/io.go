package signal

import (
	"context"
	"time"

	"github.com/dkeye/Presence/internal/wire"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	var tick <-chan time.Time
	if ctl.opts.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.opts.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer func() {
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case <-tick:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump channel closed")
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		}
	}
}

// readPump dispatches inbound frames until the socket fails, then runs the
// disconnect cascade exactly once.
func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn) {
	defer func() {
		c.Close()
		if _, err := ctl.Orch.Disconnect(context.WithoutCancel(ctx), c.id); err != nil {
			log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("disconnect")
		}
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump closing")
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		ctl.handleSignal(ctx, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, c *WsSignalConn, data []byte) {
	env, err := wire.Decode(data)
	if err != nil {
		ctl.sendError(c, "", err)
		return
	}

	switch env.Event {
	case wire.VoiceJoinServer:
		ctl.handleJoinServer(ctx, c, env)
	case wire.VoiceLeaveServer:
		ctl.handleLeaveServer(ctx, c, env)
	case wire.VoiceJoinChannel:
		ctl.handleJoinChannel(ctx, c, env)
	case wire.VoiceLeaveChannel:
		ctl.handleLeaveChannel(ctx, c, env)
	case wire.ChannelSubscribe:
		ctl.handleChannelSubscribe(ctx, c, env)
	case wire.ChannelUnsubscribe:
		ctl.handleChannelUnsubscribe(ctx, c, env)
	case wire.TypingStart:
		ctl.handleTyping(ctx, c, env)
	case wire.HeartbeatPing:
		ctl.handlePing(ctx, c, env)
	case wire.SyncMissed:
		ctl.handleSync(ctx, c, env)
	default:
		ctl.sendError(c, env.Event, wire.ErrUnknownEvent)
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, event string, v any) {
	b, err := wire.Marshal(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("event", event).Msg("sendJSON dropped")
	}
}

// sendError reports malformed or rejected input to the sender only.
func (ctl *SignalWSController) sendError(c *WsSignalConn, event string, err error) {
	log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("event", event).Msg("dropping inbound event")
	ctl.sendJSON(c, wire.Error, wire.ErrorPayload{Error: err.Error(), Event: event})
}
