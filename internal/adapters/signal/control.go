package signal

import (
	"context"

	"github.com/dkeye/Presence/internal/wire"
)

func (ctl *SignalWSController) handlePing(ctx context.Context, c *WsSignalConn, env wire.Envelope) {
	var p wire.HeartbeatPayload
	if err := wire.Unmarshal(env.Data, &p); err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	if err := ctl.Orch.Heartbeat(ctx, c.id, p.Timestamp); err != nil {
		ctl.sendError(c, env.Event, err)
	}
}

// handleSync answers on the read goroutine; the event log query never
// touches the hub loop.
func (ctl *SignalWSController) handleSync(ctx context.Context, c *WsSignalConn, env wire.Envelope) {
	var req wire.SyncRequest
	if err := wire.Unmarshal(env.Data, &req); err != nil {
		ctl.sendError(c, env.Event, err)
		return
	}
	ctl.sendJSON(c, wire.SyncResponse, ctl.Orch.MissedMessages(ctx, req))
}
