// Package reconnect is the client connection state machine. It decides, it
// does not dial: callers act on the returned delays.
package reconnect

import (
	"time"

	"github.com/dkeye/Presence/internal/backoff"
)

type State int

const (
	Connected State = iota
	Retrying
	Terminal
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Retrying:
		return "retrying"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Machine tracks one logical client connection across sockets.
type Machine struct {
	Policy backoff.Policy

	state          State
	attempt        int
	lastDisconnect time.Time
}

// New starts before the first dial. That dial is not a retry: if it fails,
// ConnectFailed schedules attempt 0.
func New(p backoff.Policy) *Machine {
	return &Machine{Policy: p, state: Retrying, attempt: -1}
}

func (m *Machine) State() State { return m.state }

// Attempt is the index of the pending retry, -1 before the first dial.
func (m *Machine) Attempt() int { return m.attempt }

// Disconnected handles a transport drop. Intentional drops go straight to
// Terminal. Otherwise the disconnect time is recorded and the delay of the
// first attempt is returned.
func (m *Machine) Disconnected(intentional bool, now time.Time) (time.Duration, bool) {
	if intentional {
		m.state = Terminal
		return 0, false
	}
	if m.state == Terminal {
		return 0, false
	}
	if m.state == Connected || m.lastDisconnect.IsZero() {
		m.lastDisconnect = now
	}
	m.state = Retrying
	m.attempt = 0
	return m.Policy.Delay(0), true
}

// ConnectFailed counts a failed attempt and returns the next delay, or false
// once the attempts are exhausted.
func (m *Machine) ConnectFailed() (time.Duration, bool) {
	if m.state != Retrying {
		return 0, false
	}
	m.attempt++
	if m.Policy.Exhausted(m.attempt) {
		m.state = Terminal
		return 0, false
	}
	return m.Policy.Delay(m.attempt), true
}

// Connected resets the attempt counter. It returns the time of the last
// disconnect when the caller should request a resync.
func (m *Machine) Connected(time.Time) (time.Time, bool) {
	m.state = Connected
	m.attempt = 0
	since := m.lastDisconnect
	m.lastDisconnect = time.Time{}
	return since, !since.IsZero()
}

// Stop moves to Terminal, e.g. on local close.
func (m *Machine) Stop() { m.state = Terminal }
