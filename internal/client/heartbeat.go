package client

import (
	"encoding/json"
	"time"

	"github.com/dkeye/Presence/internal/wire"
	"github.com/rs/zerolog/log"
)

// heartbeat pings until done is closed. It only runs while a socket is up.
func (c *Client) heartbeat(done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ts := c.opts.Now().UnixMilli()
			if err := c.Emit(wire.HeartbeatPing, wire.HeartbeatPayload{Timestamp: ts}); err != nil {
				log.Debug().Err(err).Str("module", "client").Msg("heartbeat")
			}
		}
	}
}

func (c *Client) handlePong(data json.RawMessage) {
	var p wire.HeartbeatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "client").Msg("bad pong")
		return
	}
	rtt := time.Duration(c.opts.Now().UnixMilli()-p.Timestamp) * time.Millisecond
	c.mu.Lock()
	c.latency = rtt
	c.mu.Unlock()
}
