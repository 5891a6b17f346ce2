package app

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/wire"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotSubscribed = errors.New("connection not subscribed to room")
	ErrNotSeatOwner  = errors.New("participant was not seated by this connection")
)

// Presence is the voice presence and channel fan-out protocol on top of the
// room manager and voice state. Every method must run on the hub event loop.
type Presence struct {
	Registry *Registry
	Rooms    core.RoomManager
	Voice    *core.VoiceState
	Policy   Policy
	Encode   core.Encoder
	Now      func() time.Time
}

// NewPresence wires the protocol and subscribes it to connection teardown.
func NewPresence(reg *Registry, rooms core.RoomManager, voice *core.VoiceState, policy Policy) *Presence {
	p := &Presence{
		Registry: reg,
		Rooms:    rooms,
		Voice:    voice,
		Policy:   policy,
		Encode:   wire.Encode,
		Now:      time.Now,
	}
	reg.AddListener(p)
	return p
}

// SubscribeVoiceScope adds the connection to the server's voice topic and
// sends it the full participant snapshot.
func (p *Presence) SubscribeVoiceScope(id core.ConnID, server domain.ServerID) error {
	c, err := p.conn(id)
	if err != nil {
		return err
	}
	t := core.VoiceScope(server)
	p.Rooms.Subscribe(t, id, c.Signal)
	c.Rooms[t] = struct{}{}
	log.Info().Str("module", "app.presence").Str("conn", string(id)).Str("server", string(server)).Msg("voice scope subscribed")

	return p.send(c, core.Event{Kind: core.KindVoiceSnapshot, Topic: t, Payload: p.Voice.Snapshot(server)})
}

func (p *Presence) UnsubscribeVoiceScope(id core.ConnID, server domain.ServerID) error {
	c, err := p.conn(id)
	if err != nil {
		return err
	}
	t := core.VoiceScope(server)
	p.Rooms.Unsubscribe(t, id)
	delete(c.Rooms, t)
	log.Info().Str("module", "app.presence").Str("conn", string(id)).Str("server", string(server)).Msg("voice scope unsubscribed")
	return nil
}

// JoinChannel seats a participant. A duplicate join is a no-op without a
// broadcast and reports false.
func (p *Presence) JoinChannel(id core.ConnID, server domain.ServerID, channel domain.ChannelID, part domain.Participant) (bool, error) {
	c, err := p.conn(id)
	if err != nil {
		return false, err
	}
	if part.ChannelID == "" {
		part.ChannelID = channel
	}
	if !p.Voice.Join(server, channel, part) {
		log.Debug().Str("module", "app.presence").Str("conn", string(id)).Str("participant", string(part.ID)).Msg("duplicate join ignored")
		return false, nil
	}
	c.Seats = append(c.Seats, Seat{Server: server, Channel: channel, Participant: part.ID})
	log.Info().Str("module", "app.presence").Str("conn", string(id)).Str("server", string(server)).Str("channel", string(channel)).Str("participant", string(part.ID)).Msg("participant joined")

	p.broadcast(core.VoiceScope(server), "", core.Event{
		Kind:    core.KindParticipantJoin,
		Payload: wire.ParticipantJoinPayload{ChannelID: channel, Participant: part},
	})
	return true, nil
}

// LeaveChannel removes a participant seated by this connection. Leaving an
// absent participant is a no-op and reports false.
func (p *Presence) LeaveChannel(id core.ConnID, server domain.ServerID, channel domain.ChannelID, pid domain.ParticipantID) (bool, error) {
	c, err := p.conn(id)
	if err != nil {
		return false, err
	}
	if !p.Voice.Contains(server, channel, pid) {
		return false, nil
	}
	seat := Seat{Server: server, Channel: channel, Participant: pid}
	if c.seatIndex(seat) < 0 {
		return false, fmt.Errorf("%w: %s", ErrNotSeatOwner, pid)
	}
	p.leave(c, seat)
	return true, nil
}

func (p *Presence) SubscribeChannel(id core.ConnID, channel domain.ChannelID) error {
	c, err := p.conn(id)
	if err != nil {
		return err
	}
	t := core.Channel(channel)
	p.Rooms.Subscribe(t, id, c.Signal)
	c.Rooms[t] = struct{}{}
	return nil
}

func (p *Presence) UnsubscribeChannel(id core.ConnID, channel domain.ChannelID) error {
	c, err := p.conn(id)
	if err != nil {
		return err
	}
	t := core.Channel(channel)
	p.Rooms.Unsubscribe(t, id)
	delete(c.Rooms, t)
	return nil
}

// Typing relays a typing event to the channel's other subscribers.
// The sender must be subscribed to the channel.
func (p *Presence) Typing(id core.ConnID, ev wire.TypingPayload) (core.PublishResult, error) {
	if _, err := p.conn(id); err != nil {
		return core.PublishResult{}, err
	}
	t := core.Channel(ev.ChannelID)
	room, ok := p.Rooms.Get(t)
	if !ok || !room.Has(id) {
		return core.PublishResult{}, fmt.Errorf("%w: %s", ErrNotSubscribed, t)
	}
	return p.broadcast(t, id, core.Event{Kind: core.KindTyping, Payload: ev}), nil
}

// PublishMessage fans a chat message out to the channel room.
func (p *Presence) PublishMessage(msg domain.Message) core.PublishResult {
	return p.broadcast(core.Channel(msg.ChannelID), "", core.Event{Kind: core.KindChatMessage, Payload: msg})
}

// Heartbeat records liveness and echoes the client's timestamp unchanged.
func (p *Presence) Heartbeat(id core.ConnID, timestamp int64) error {
	c, err := p.conn(id)
	if err != nil {
		return err
	}
	p.Registry.Touch(id, p.Now())
	return p.send(c, core.Event{Kind: core.KindPong, Payload: wire.HeartbeatPayload{Timestamp: timestamp}})
}

func (p *Presence) Snapshot(server domain.ServerID) map[domain.ChannelID][]domain.Participant {
	return p.Voice.Snapshot(server)
}

// OnConnectionClosed is the implicit leave: every seat the connection held
// goes through the same path as an explicit leave, then its subscriptions
// are dropped.
func (p *Presence) OnConnectionClosed(c *Connection) {
	for _, seat := range slices.Clone(c.Seats) {
		p.leave(c, seat)
	}
	for t := range c.Rooms {
		p.Rooms.Unsubscribe(t, c.ID)
	}
	clear(c.Rooms)
}

func (p *Presence) leave(c *Connection, seat Seat) {
	if i := c.seatIndex(seat); i >= 0 {
		c.Seats = slices.Delete(c.Seats, i, i+1)
	}
	if !p.Voice.Leave(seat.Server, seat.Channel, seat.Participant) {
		return
	}
	log.Info().Str("module", "app.presence").Str("conn", string(c.ID)).Str("server", string(seat.Server)).Str("channel", string(seat.Channel)).Str("participant", string(seat.Participant)).Msg("participant left")

	p.broadcast(core.VoiceScope(seat.Server), "", core.Event{
		Kind:    core.KindParticipantLeave,
		Payload: wire.ParticipantLeavePayload{ChannelID: seat.Channel, ParticipantID: seat.Participant},
	})
}

func (p *Presence) broadcast(t core.Topic, from core.ConnID, ev core.Event) core.PublishResult {
	room, ok := p.Rooms.Get(t)
	if !ok {
		return core.PublishResult{}
	}
	ev.Topic = t
	frame, err := p.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Str("room", t.String()).Msg("encode broadcast")
		return core.PublishResult{}
	}
	res := room.Broadcast(from, frame)
	if p.Policy == nil {
		return res
	}
	for _, slow := range res.Dropped {
		switch p.Policy.OnBackPressure(room, slow) {
		case KickMember:
			p.Registry.Kick(slow)
		case MarkSlow, DropFrame, NoAction:
			log.Warn().Str("module", "app.presence").Str("room", t.String()).Str("conn", string(slow)).Msg("frame dropped for slow subscriber")
		}
	}
	return res
}

func (p *Presence) send(c *Connection, ev core.Event) error {
	frame, err := p.Encode(ev)
	if err != nil {
		return err
	}
	if err := c.Signal.TrySend(frame); err != nil {
		return fmt.Errorf("send to %s: %w", c.ID, err)
	}
	return nil
}

func (p *Presence) conn(id core.ConnID) (*Connection, error) {
	c, ok := p.Registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}
	return c, nil
}
