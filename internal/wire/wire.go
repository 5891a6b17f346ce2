// Package wire maps the hub's structured events to the string-named JSON
// envelopes existing clients speak.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
)

// Inbound event names.
const (
	VoiceJoinServer    = "voice:join-server"
	VoiceLeaveServer   = "voice:leave-server"
	VoiceJoinChannel   = "voice:join-channel"
	VoiceLeaveChannel  = "voice:leave-channel"
	ChannelSubscribe   = "channel:subscribe"
	ChannelUnsubscribe = "channel:unsubscribe"
	TypingStart        = "typing:start"
	HeartbeatPing      = "heartbeat:ping"
	SyncMissed         = "sync:missed-messages"
)

// Outbound event names without a room parameter.
const (
	HeartbeatPong = "heartbeat:pong"
	SyncResponse  = "sync:missed-messages:response"
	Error         = "error"
)

var (
	ErrEmptyEvent   = errors.New("event name empty")
	ErrUnknownEvent = errors.New("unknown event kind")
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func VoiceUpdate(server domain.ServerID) string {
	return "voice:" + string(server) + ":update"
}

func ParticipantJoin(server domain.ServerID) string {
	return "voice:" + string(server) + ":participant-join"
}

func ParticipantLeave(server domain.ServerID) string {
	return "voice:" + string(server) + ":participant-leave"
}

func Typing(channel domain.ChannelID) string {
	return "typing:" + string(channel)
}

func ChatMessages(channel domain.ChannelID) string {
	return "chat:" + string(channel) + ":messages"
}

// Name derives the wire event name of an outbound event.
func Name(ev core.Event) (string, error) {
	switch ev.Kind {
	case core.KindVoiceSnapshot:
		return VoiceUpdate(domain.ServerID(ev.Topic.ID)), nil
	case core.KindParticipantJoin:
		return ParticipantJoin(domain.ServerID(ev.Topic.ID)), nil
	case core.KindParticipantLeave:
		return ParticipantLeave(domain.ServerID(ev.Topic.ID)), nil
	case core.KindTyping:
		return Typing(domain.ChannelID(ev.Topic.ID)), nil
	case core.KindChatMessage:
		return ChatMessages(domain.ChannelID(ev.Topic.ID)), nil
	case core.KindPong:
		return HeartbeatPong, nil
	case core.KindSyncResponse:
		return SyncResponse, nil
	case core.KindError:
		return Error, nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnknownEvent, ev.Kind)
	}
}

// Encode implements core.Encoder.
func Encode(ev core.Event) (core.Frame, error) {
	name, err := Name(ev)
	if err != nil {
		return nil, err
	}
	return Marshal(name, ev.Payload)
}

// Marshal builds an envelope frame for an arbitrary event name.
func Marshal(name string, payload any) (core.Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	b, err := json.Marshal(Envelope{Event: name, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", name, err)
	}
	return b, nil
}

// Decode parses an inbound frame.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	env.Event = strings.TrimSpace(env.Event)
	if env.Event == "" {
		return Envelope{}, ErrEmptyEvent
	}
	return env, nil
}
