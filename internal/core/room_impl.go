package core

import (
	"slices"

	"github.com/rs/zerolog/log"
)

// roomImpl is an in-memory broadcast group.
// It is not safe for concurrent use: the hub event loop is its only owner.
// It never closes adapter-owned resources.
type roomImpl struct {
	topic   Topic
	members map[ConnID]SignalConnection
}

func NewRoomService(t Topic) RoomService {
	return &roomImpl{
		topic:   t,
		members: make(map[ConnID]SignalConnection),
	}
}

func (r *roomImpl) Topic() Topic { return r.topic }

func (r *roomImpl) MemberCount() int { return len(r.members) }

func (r *roomImpl) Has(id ConnID) bool {
	_, ok := r.members[id]
	return ok
}

// Members returns subscriber ids in a stable order.
func (r *roomImpl) Members() []ConnID {
	out := make([]ConnID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (r *roomImpl) AddMember(id ConnID, conn SignalConnection) {
	r.members[id] = conn
	log.Debug().Str("module", "core.room").Str("room", r.topic.String()).Str("conn", string(id)).Msg("member added")
}

func (r *roomImpl) RemoveMember(id ConnID) {
	delete(r.members, id)
	log.Debug().Str("module", "core.room").Str("room", r.topic.String()).Str("conn", string(id)).Msg("member removed")
}

// Broadcast sends data to every member except from. An empty from reaches
// everyone. Members with a full buffer are reported, not retried.
func (r *roomImpl) Broadcast(from ConnID, data Frame) PublishResult {
	res := PublishResult{}
	for _, id := range r.Members() {
		if from != "" && id == from {
			continue
		}
		if err := r.members[id].TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", r.topic.String()).Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
