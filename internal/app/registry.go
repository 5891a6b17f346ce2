package app

import (
	"errors"
	"slices"
	"time"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrDuplicateConnection = errors.New("connection already registered")
)

// Seat is one voice participant a connection placed into a channel.
type Seat struct {
	Server      domain.ServerID
	Channel     domain.ChannelID
	Participant domain.ParticipantID
}

// Connection is the registry's record of one live transport session.
type Connection struct {
	ID          core.ConnID
	User        domain.User
	Signal      core.SignalConnection
	ConnectedAt time.Time
	LastSeen    time.Time
	Rooms       map[core.Topic]struct{}
	Seats       []Seat
}

// ConnectionInfo is a read-only view for APIs (no transport fields).
type ConnectionInfo struct {
	ID          core.ConnID   `json:"id"`
	UserID      domain.UserID `json:"user_id"`
	Username    string        `json:"username"`
	ConnectedAt time.Time     `json:"connected_at"`
	LastSeen    time.Time     `json:"last_seen"`
	Rooms       []string      `json:"rooms"`
	Seats       int           `json:"seats"`
}

// ConnectionListener observes connection teardown. Room cleanup hangs off
// this instead of the transport calling into room logic.
type ConnectionListener interface {
	OnConnectionClosed(c *Connection)
}

// Registry tracks live connections independent of room membership.
// It is owned by the hub event loop.
type Registry struct {
	conns     map[core.ConnID]*Connection
	listeners []ConnectionListener
	now       func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[core.ConnID]*Connection),
		now:   time.Now,
	}
}

func (r *Registry) AddListener(l ConnectionListener) {
	r.listeners = append(r.listeners, l)
}

func (r *Registry) Register(id core.ConnID, user domain.User, sig core.SignalConnection) error {
	if _, ok := r.conns[id]; ok {
		return ErrDuplicateConnection
	}
	now := r.now()
	r.conns[id] = &Connection{
		ID:          id,
		User:        user,
		Signal:      sig,
		ConnectedAt: now,
		LastSeen:    now,
		Rooms:       make(map[core.Topic]struct{}),
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(user.ID)).Int("total", len(r.conns)).Msg("connection registered")
	return nil
}

// Unregister removes the connection and notifies listeners. It reports
// false for an unknown id so a double close cascades only once.
func (r *Registry) Unregister(id core.ConnID) bool {
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	delete(r.conns, id)
	for _, l := range r.listeners {
		l.OnConnectionClosed(c)
	}
	log.Info().Str("module", "app.registry").Str("conn", string(id)).Int("total", len(r.conns)).Msg("connection unregistered")
	return true
}

func (r *Registry) Get(id core.ConnID) (*Connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// Touch records liveness. Liveness is advisory and never disconnects.
func (r *Registry) Touch(id core.ConnID, at time.Time) bool {
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	c.LastSeen = at
	return true
}

// Kick closes the transport; the adapter's close path unregisters it.
func (r *Registry) Kick(id core.ConnID) bool {
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	c.Signal.Close()
	log.Warn().Str("module", "app.registry").Str("conn", string(id)).Msg("connection kicked")
	return true
}

func (r *Registry) Len() int { return len(r.conns) }

func (r *Registry) List() []ConnectionInfo {
	out := make([]ConnectionInfo, 0, len(r.conns))
	for _, c := range r.conns {
		rooms := make([]string, 0, len(c.Rooms))
		for t := range c.Rooms {
			rooms = append(rooms, t.String())
		}
		slices.Sort(rooms)
		out = append(out, ConnectionInfo{
			ID:          c.ID,
			UserID:      c.User.ID,
			Username:    c.User.Username,
			ConnectedAt: c.ConnectedAt,
			LastSeen:    c.LastSeen,
			Rooms:       rooms,
			Seats:       len(c.Seats),
		})
	}
	slices.SortFunc(out, func(a, b ConnectionInfo) int {
		return a.ConnectedAt.Compare(b.ConnectedAt)
	})
	return out
}

func (c *Connection) seatIndex(s Seat) int {
	return slices.Index(c.Seats, s)
}
