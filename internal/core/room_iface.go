package core

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []ConnID
}

// RoomService is the core-facing API of one broadcast group.
// It owns the subscriber set but never touches transport resources.
type RoomService interface {
	Topic() Topic
	MemberCount() int
	Members() []ConnID
	Has(id ConnID) bool

	AddMember(id ConnID, conn SignalConnection)
	RemoveMember(id ConnID)
	Broadcast(from ConnID, data Frame) PublishResult
}

type RoomInfo struct {
	Topic       Topic `json:"topic"`
	MemberCount int   `json:"client_count"`
}

// RoomManager maps topics to broadcast groups. Groups are created on first
// subscription and pruned once empty.
type RoomManager interface {
	Get(t Topic) (RoomService, bool)
	Subscribe(t Topic, id ConnID, conn SignalConnection) bool
	Unsubscribe(t Topic, id ConnID) bool
	List() []RoomInfo
}
