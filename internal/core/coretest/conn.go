// Package coretest provides transport doubles for hub tests.
package coretest

import (
	"sync"

	"github.com/dkeye/Presence/internal/core"
)

// Conn is a SignalConnection that records frames in memory.
// Limit caps the number of buffered frames; zero means unlimited.
type Conn struct {
	Limit int

	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func NewConn() *Conn { return &Conn{} }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrBackpressure
	}
	if c.Limit > 0 && len(c.frames) >= c.Limit {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Frames returns a copy of everything received so far.
func (c *Conn) Frames() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// Strings is Frames as strings, handy for comparisons.
func (c *Conn) Strings() []string {
	frames := c.Frames()
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = string(f)
	}
	return out
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
