package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dkeye/Presence/internal/backoff"
	"github.com/dkeye/Presence/internal/reconnect"
	"github.com/rs/zerolog/log"
)

// Query runs fetch once and retries up to p.MaxAttempts times on error,
// waiting p.Delay(attempt) before each retry. The last error is returned.
func Query[T any](ctx context.Context, p backoff.Policy, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := fetch(ctx)
	for attempt := 0; err != nil && attempt < p.MaxAttempts; attempt++ {
		t := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
		log.Debug().Err(err).Str("module", "client.query").Int("retry", attempt+1).Msg("retrying query")
		v, err = fetch(ctx)
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}

// Poller refetches on an interval while the hub is unreachable and stays
// quiet while pushes arrive.
type Poller struct {
	Interval time.Duration
	Fetch    func(context.Context) error

	connected atomic.Bool
}

func NewPoller(interval time.Duration, fetch func(context.Context) error) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{Interval: interval, Fetch: fetch}
}

// Attach follows the client's connection status.
func (p *Poller) Attach(c *Client) {
	p.connected.Store(c.State() == reconnect.Connected)
	c.OnStatus(p.SetStatus)
}

func (p *Poller) SetStatus(s reconnect.State) {
	p.connected.Store(s == reconnect.Connected)
}

func (p *Poller) Polling() bool { return !p.connected.Load() }

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.Polling() {
				continue
			}
			if err := p.Fetch(ctx); err != nil {
				log.Warn().Err(err).Str("module", "client.poller").Msg("poll failed")
			}
		}
	}
}
