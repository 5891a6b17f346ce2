package core

import (
	"slices"

	"github.com/dkeye/Presence/internal/domain"
)

// VoiceState holds the ChannelParticipants sets of every server.
// Participants keep join order. Like the rooms it is owned by the hub
// event loop and holds no lock.
type VoiceState struct {
	servers map[domain.ServerID]map[domain.ChannelID][]domain.Participant
}

func NewVoiceState() *VoiceState {
	return &VoiceState{servers: make(map[domain.ServerID]map[domain.ChannelID][]domain.Participant)}
}

// Join inserts p into the channel. It reports false when a participant with
// the same id is already present; the stored record is left untouched
// (first join wins).
func (s *VoiceState) Join(server domain.ServerID, channel domain.ChannelID, p domain.Participant) bool {
	channels, ok := s.servers[server]
	if !ok {
		channels = make(map[domain.ChannelID][]domain.Participant)
		s.servers[server] = channels
	}
	if s.indexOf(channels[channel], p.ID) >= 0 {
		return false
	}
	channels[channel] = append(channels[channel], p)
	return true
}

// Leave removes the participant and reports whether it was present.
// Empty channel sets and empty servers are pruned.
func (s *VoiceState) Leave(server domain.ServerID, channel domain.ChannelID, id domain.ParticipantID) bool {
	channels, ok := s.servers[server]
	if !ok {
		return false
	}
	list := channels[channel]
	i := s.indexOf(list, id)
	if i < 0 {
		return false
	}
	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(channels, channel)
	} else {
		channels[channel] = list
	}
	if len(channels) == 0 {
		delete(s.servers, server)
	}
	return true
}

func (s *VoiceState) Contains(server domain.ServerID, channel domain.ChannelID, id domain.ParticipantID) bool {
	return s.indexOf(s.servers[server][channel], id) >= 0
}

// Participants returns a copy of one channel's set.
func (s *VoiceState) Participants(server domain.ServerID, channel domain.ChannelID) []domain.Participant {
	return slices.Clone(s.servers[server][channel])
}

// Snapshot copies every non-empty channel set of a server. The result is
// never nil so it encodes as an empty object.
func (s *VoiceState) Snapshot(server domain.ServerID) map[domain.ChannelID][]domain.Participant {
	out := make(map[domain.ChannelID][]domain.Participant, len(s.servers[server]))
	for ch, list := range s.servers[server] {
		out[ch] = slices.Clone(list)
	}
	return out
}

func (s *VoiceState) indexOf(list []domain.Participant, id domain.ParticipantID) int {
	return slices.IndexFunc(list, func(p domain.Participant) bool { return p.ID == id })
}
