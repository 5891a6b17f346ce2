package app

import (
	"slices"
	"strings"

	"github.com/dkeye/Presence/internal/core"
)

// RoomManagerImpl keeps broadcast groups by topic. Like the groups it has a
// single owner, the hub event loop, and therefore no lock.
type RoomManagerImpl struct {
	rooms map[core.Topic]core.RoomService
}

func NewRoomManager() core.RoomManager {
	return &RoomManagerImpl{rooms: make(map[core.Topic]core.RoomService)}
}

func (m *RoomManagerImpl) Get(t core.Topic) (core.RoomService, bool) {
	room, ok := m.rooms[t]
	return room, ok
}

// Subscribe adds id to the group of t, creating the group on first use.
// It reports false when id was already subscribed.
func (m *RoomManagerImpl) Subscribe(t core.Topic, id core.ConnID, conn core.SignalConnection) bool {
	room, ok := m.rooms[t]
	if !ok {
		room = core.NewRoomService(t)
		m.rooms[t] = room
	}
	if room.Has(id) {
		return false
	}
	room.AddMember(id, conn)
	return true
}

// Unsubscribe removes id and prunes the group once empty.
func (m *RoomManagerImpl) Unsubscribe(t core.Topic, id core.ConnID) bool {
	room, ok := m.rooms[t]
	if !ok || !room.Has(id) {
		return false
	}
	room.RemoveMember(id)
	if room.MemberCount() == 0 {
		delete(m.rooms, t)
	}
	return true
}

func (m *RoomManagerImpl) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for t, r := range m.rooms {
		out = append(out, core.RoomInfo{Topic: t, MemberCount: r.MemberCount()})
	}
	slices.SortFunc(out, func(a, b core.RoomInfo) int {
		return strings.Compare(a.Topic.String(), b.Topic.String())
	})
	return out
}
