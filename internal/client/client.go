// Package client is a Go client of the hub: dial, dispatch by event name,
// heartbeat, reconnect with backoff and missed-message resync.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Presence/internal/backoff"
	"github.com/dkeye/Presence/internal/reconnect"
	"github.com/dkeye/Presence/internal/wire"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrGaveUp       = errors.New("reconnect attempts exhausted")
	ErrClosed       = errors.New("client closed")
	ErrNotConnected = errors.New("not connected")
)

const DefaultHeartbeat = 25 * time.Second

type Handler func(data json.RawMessage)

type Options struct {
	URL       string
	Header    http.Header
	Dialer    *websocket.Dialer
	Heartbeat time.Duration
	Backoff   backoff.Policy
	Now       func() time.Time
}

type Client struct {
	opts    Options
	machine *reconnect.Machine

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     reconnect.State
	handlers  map[string][]Handler
	onStatus  []func(reconnect.State)
	onConnect []func(*Client)
	latency   time.Duration

	writeMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
}

func New(opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.Backoff.MaxAttempts <= 0 {
		opts.Backoff = backoff.Socket()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Client{
		opts:     opts,
		machine:  reconnect.New(opts.Backoff),
		state:    reconnect.Retrying,
		handlers: make(map[string][]Handler),
		closed:   make(chan struct{}),
	}
	c.On(wire.HeartbeatPong, c.handlePong)
	return c
}

// On registers fn for an exact event name. Handlers run on the read
// goroutine in registration order.
func (c *Client) On(event string, fn Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], fn)
	c.mu.Unlock()
}

// OnStatus registers a connection status listener.
func (c *Client) OnStatus(fn func(reconnect.State)) {
	c.mu.Lock()
	c.onStatus = append(c.onStatus, fn)
	c.mu.Unlock()
}

// OnConnect runs after every successful (re)connect, before the resync
// request. The hub keeps no subscriptions across sockets, so this is where
// callers subscribe again.
func (c *Client) OnConnect(fn func(*Client)) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

func (c *Client) State() reconnect.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Latency is the round trip of the last heartbeat.
func (c *Client) Latency() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latency
}

// Emit sends one envelope on the current socket.
func (c *Client) Emit(event string, payload any) error {
	frame, err := wire.Marshal(event, payload)
	if err != nil {
		return err
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// Close is a local, intentional disconnect: no reconnect follows and any
// pending retry timer is abandoned.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			c.writeMu.Unlock()
			_ = conn.Close()
		}
	})
	return nil
}

// Run connects and keeps reconnecting until ctx ends, Close is called, the
// hub closes the socket normally, or the attempts are exhausted (ErrGaveUp).
func (c *Client) Run(ctx context.Context) error {
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if c.stopping(ctx) {
				c.setState(reconnect.Terminal)
				return nil
			}
			delay, retry := c.machine.ConnectFailed()
			log.Warn().Err(err).Str("module", "client").Int("attempt", c.machine.Attempt()).Dur("delay", delay).Msg("dial failed")
			if !retry {
				c.setState(reconnect.Terminal)
				return ErrGaveUp
			}
			if !c.wait(ctx, delay) {
				c.setState(reconnect.Terminal)
				return nil
			}
			continue
		}

		err = c.serve(ctx, conn)
		intentional := c.stopping(ctx) || websocket.IsCloseError(err, websocket.CloseNormalClosure)
		delay, retry := c.machine.Disconnected(intentional, c.opts.Now())
		c.setState(c.machine.State())
		if !retry {
			log.Info().Str("module", "client").Msg("disconnected")
			return nil
		}
		log.Warn().Err(err).Str("module", "client").Dur("delay", delay).Msg("connection lost, reconnecting")
		if !c.wait(ctx, delay) {
			c.setState(reconnect.Terminal)
			return nil
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// serve runs one socket to completion and returns the read error.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	default:
	}
	c.conn = conn
	hooks := slices.Clone(c.onConnect)
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	since, resync := c.machine.Connected(c.opts.Now())
	c.setState(reconnect.Connected)
	log.Info().Str("module", "client").Str("url", c.opts.URL).Msg("connected")

	for _, fn := range hooks {
		fn(c)
	}
	if resync {
		if err := c.Emit(wire.SyncMissed, wire.SyncRequest{Since: since.UnixMilli()}); err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("resync request")
		}
	}

	done := make(chan struct{})
	defer close(done)
	go c.heartbeat(done)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	go func() {
		select {
		case <-c.closed:
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		env, err := wire.Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "client").Msg("bad frame")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env wire.Envelope) {
	c.mu.RLock()
	hs := c.handlers[env.Event]
	c.mu.RUnlock()
	if len(hs) == 0 {
		log.Debug().Str("module", "client").Str("event", env.Event).Msg("unhandled event")
		return
	}
	for _, fn := range hs {
		fn(env.Data)
	}
}

func (c *Client) setState(s reconnect.State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	listeners := slices.Clone(c.onStatus)
	c.mu.Unlock()
	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(s)
	}
}

func (c *Client) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// wait sleeps for d unless the client is stopped first.
func (c *Client) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-c.closed:
		return false
	}
}
