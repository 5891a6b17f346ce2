package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Presence/internal/domain"
)

var ErrMissingField = errors.New("missing field")

type JoinChannelPayload struct {
	ServerID    domain.ServerID    `json:"serverId"`
	ChannelID   domain.ChannelID   `json:"channelId"`
	Participant domain.Participant `json:"participant"`
}

func (p JoinChannelPayload) Validate() error {
	switch {
	case p.ServerID == "":
		return fmt.Errorf("%w: serverId", ErrMissingField)
	case p.ChannelID == "":
		return fmt.Errorf("%w: channelId", ErrMissingField)
	case p.Participant.ID == "":
		return fmt.Errorf("%w: participant.odId", ErrMissingField)
	}
	return nil
}

// LeaveChannelPayload accepts both the web client's odId and participantId.
type LeaveChannelPayload struct {
	ServerID      domain.ServerID      `json:"serverId"`
	ChannelID     domain.ChannelID     `json:"channelId"`
	ParticipantID domain.ParticipantID `json:"participantId,omitempty"`
	OdID          domain.ParticipantID `json:"odId,omitempty"`
}

func (p LeaveChannelPayload) Participant() domain.ParticipantID {
	if p.ParticipantID != "" {
		return p.ParticipantID
	}
	return p.OdID
}

func (p LeaveChannelPayload) Validate() error {
	switch {
	case p.ServerID == "":
		return fmt.Errorf("%w: serverId", ErrMissingField)
	case p.ChannelID == "":
		return fmt.Errorf("%w: channelId", ErrMissingField)
	case p.Participant() == "":
		return fmt.Errorf("%w: odId", ErrMissingField)
	}
	return nil
}

type ParticipantJoinPayload struct {
	ChannelID   domain.ChannelID   `json:"channelId"`
	Participant domain.Participant `json:"participant"`
}

// ParticipantLeavePayload carries the participant id under both
// participantId and odId; decoding prefers participantId.
type ParticipantLeavePayload struct {
	ChannelID     domain.ChannelID
	ParticipantID domain.ParticipantID
}

type participantLeaveJSON struct {
	ChannelID     domain.ChannelID     `json:"channelId"`
	ParticipantID domain.ParticipantID `json:"participantId,omitempty"`
	OdID          domain.ParticipantID `json:"odId,omitempty"`
}

func (p ParticipantLeavePayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(participantLeaveJSON{ChannelID: p.ChannelID, ParticipantID: p.ParticipantID, OdID: p.ParticipantID})
}

func (p *ParticipantLeavePayload) UnmarshalJSON(data []byte) error {
	var raw participantLeaveJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ChannelID = raw.ChannelID
	p.ParticipantID = raw.ParticipantID
	if p.ParticipantID == "" {
		p.ParticipantID = raw.OdID
	}
	return nil
}

type TypingPayload struct {
	ChannelID domain.ChannelID `json:"channelId"`
	UserID    domain.UserID    `json:"userId"`
	UserName  string           `json:"userName"`
}

func (p TypingPayload) Validate() error {
	switch {
	case p.ChannelID == "":
		return fmt.Errorf("%w: channelId", ErrMissingField)
	case p.UserID == "":
		return fmt.Errorf("%w: userId", ErrMissingField)
	}
	return nil
}

type HeartbeatPayload struct {
	Timestamp int64 `json:"timestamp"`
}

type SyncRequest struct {
	Since      int64              `json:"since"`
	ChannelIDs []domain.ChannelID `json:"channelIds,omitempty"`
}

type SyncResponsePayload struct {
	Messages []domain.Message `json:"messages"`
	SyncedAt int64            `json:"syncedAt"`
}

type ErrorPayload struct {
	Error string `json:"error"`
	Event string `json:"event,omitempty"`
}

// ID decodes a bare string payload such as a server or channel id.
func ID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return "", fmt.Errorf("decode id: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: id", ErrMissingField)
	}
	return id, nil
}

// Unmarshal decodes an envelope payload into v.
func Unmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: data", ErrMissingField)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
