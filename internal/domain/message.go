package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxMessageLen = 4000

var (
	ErrMessageEmpty   = errors.New("message content empty")
	ErrMessageTooLong = errors.New("message content too long")
)

// Message is a chat message fanned out to a channel room and kept in the
// event log for resync.
type Message struct {
	ID         string    `json:"id"`
	ServerID   ServerID  `json:"serverId"`
	ChannelID  ChannelID `json:"channelId"`
	AuthorID   UserID    `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewMessage validates content and stamps id and creation time.
func NewMessage(server ServerID, channel ChannelID, author *User, content string, now time.Time) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if len(content) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}
	return &Message{
		ID:         uuid.NewString(),
		ServerID:   server,
		ChannelID:  channel,
		AuthorID:   author.ID,
		AuthorName: author.Username,
		Content:    content,
		CreatedAt:  now.UTC(),
	}, nil
}
