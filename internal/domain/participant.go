package domain

// Participant is the voice seat snapshot a client supplies at join time.
// The hub stores it as given and never re-validates it against identity.
// JSON names follow the existing web client.
type Participant struct {
	ID        ParticipantID `json:"odId"`
	Name      string        `json:"odName"`
	ImageURL  string        `json:"odImageUrl"`
	ChannelID ChannelID     `json:"odChannelId"`
}

// TypingUser is one entry of a "who is typing" set.
// Timestamp is epoch milliseconds of the last typing event.
type TypingUser struct {
	ID        UserID `json:"id"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}
