package domain

type (
	ServerID      string
	ChannelID     string
	ParticipantID string
)
