package core

import "github.com/dkeye/Presence/internal/domain"

type RoomKind uint8

const (
	// VoiceScopeRoom is the server-wide voice topic. It carries snapshots
	// and join/leave deltas but holds no participant list itself.
	VoiceScopeRoom RoomKind = iota + 1
	// ChannelRoom is the broadcast group of one text/voice channel.
	ChannelRoom
)

func (k RoomKind) String() string {
	switch k {
	case VoiceScopeRoom:
		return "voice"
	case ChannelRoom:
		return "channel"
	default:
		return "unknown"
	}
}

// Topic is the structured room key. Wire event names are derived from it
// only at the protocol boundary.
type Topic struct {
	Kind RoomKind `json:"kind"`
	ID   string   `json:"id"`
}

func VoiceScope(server domain.ServerID) Topic {
	return Topic{Kind: VoiceScopeRoom, ID: string(server)}
}

func Channel(channel domain.ChannelID) Topic {
	return Topic{Kind: ChannelRoom, ID: string(channel)}
}

func (t Topic) String() string { return t.Kind.String() + ":" + t.ID }
