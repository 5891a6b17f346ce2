// Package signal is the websocket transport of the hub. It decodes wire
// envelopes, forwards them to the orchestrator and owns the socket pumps.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrConnClosed = errors.New("connection closed")

const (
	defaultSendBuffer = 64
	writeWait         = 5 * time.Second
)

type Options struct {
	ReadLimit  int64
	SendBuffer int
	PingPeriod time.Duration
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	opts Options
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	return &SignalWSController{Orch: o, opts: opts}
}

// WsSignalConn is the core.SignalConnection of one socket. Frames are queued
// on send and written by writePump.
type WsSignalConn struct {
	id   core.ConnID
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

// Close is idempotent. The write pump flushes queued frames, sends a normal
// close and shuts the socket; the read pump then disconnects the session
// from the hub.
func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and registers the socket with the hub.
// The user comes from the client token; the display name is whatever the
// HTTP layer resolved, guest when empty.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	user, err := domain.NewUser(c.GetString("client_token"), c.GetString("display_name"))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("rejecting ws connection")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := &WsSignalConn{
		id:   core.ConnID(uuid.NewString()),
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	if err := ctl.Orch.Connect(ctx, conn.id, *user, conn); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(conn.id)).Msg("hub rejected connection")
		_ = ws.Close()
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Str("user", string(user.ID)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, conn)
	}()
}
