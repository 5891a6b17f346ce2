package core

type EventKind uint8

const (
	KindVoiceSnapshot EventKind = iota + 1
	KindParticipantJoin
	KindParticipantLeave
	KindTyping
	KindChatMessage
	KindPong
	KindSyncResponse
	KindError
)

// Event is an outbound notification before wire encoding. Topic is the room
// it belongs to and is zero for direct replies (pong, sync, error).
type Event struct {
	Kind    EventKind
	Topic   Topic
	Payload any
}

// Encoder turns an event into a frame. The wire package supplies the
// production implementation.
type Encoder func(Event) (Frame, error)
