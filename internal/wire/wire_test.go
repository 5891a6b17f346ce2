package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
)

func TestNameIsParameterizedByRoom(t *testing.T) {
	tests := []struct {
		ev   core.Event
		want string
	}{
		{core.Event{Kind: core.KindVoiceSnapshot, Topic: core.VoiceScope("s1")}, "voice:s1:update"},
		{core.Event{Kind: core.KindParticipantJoin, Topic: core.VoiceScope("s1")}, "voice:s1:participant-join"},
		{core.Event{Kind: core.KindParticipantLeave, Topic: core.VoiceScope("s1")}, "voice:s1:participant-leave"},
		{core.Event{Kind: core.KindTyping, Topic: core.Channel("c1")}, "typing:c1"},
		{core.Event{Kind: core.KindChatMessage, Topic: core.Channel("c1")}, "chat:c1:messages"},
		{core.Event{Kind: core.KindPong}, "heartbeat:pong"},
		{core.Event{Kind: core.KindSyncResponse}, "sync:missed-messages:response"},
	}
	for _, tt := range tests {
		got, err := Name(tt.ev)
		if err != nil {
			t.Fatalf("Name(%v): %v", tt.ev.Kind, err)
		}
		if got != tt.want {
			t.Errorf("Name(%v) = %q, want %q", tt.ev.Kind, got, tt.want)
		}
	}

	if _, err := Name(core.Event{Kind: 99}); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("unknown kind error = %v", err)
	}
}

func TestEncodePong(t *testing.T) {
	frame, err := Encode(core.Event{Kind: core.KindPong, Payload: HeartbeatPayload{Timestamp: 1700000000123}})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(frame), `{"event":"heartbeat:pong","data":{"timestamp":1700000000123}}`; got != want {
		t.Errorf("frame = %s, want %s", got, want)
	}
}

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"event":"voice:join-server","data":"s1"}`))
	if err != nil {
		t.Fatal(err)
	}
	id, err := ID(env.Data)
	if err != nil || id != "s1" {
		t.Errorf("ID = %q, %v", id, err)
	}

	if _, err := Decode([]byte(`{"data":1}`)); !errors.Is(err, ErrEmptyEvent) {
		t.Errorf("missing event error = %v", err)
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("garbage decoded without error")
	}
}

func TestLeavePayloadAcceptsBothIDFields(t *testing.T) {
	var p LeaveChannelPayload
	if err := json.Unmarshal([]byte(`{"serverId":"s","channelId":"c","odId":"p1"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Participant() != domain.ParticipantID("p1") {
		t.Errorf("odId not used: %+v", p)
	}
	p = LeaveChannelPayload{ServerID: "s", ChannelID: "c", ParticipantID: "p2", OdID: "p1"}
	if p.Participant() != "p2" {
		t.Errorf("participantId should win, got %q", p.Participant())
	}
	if err := (LeaveChannelPayload{ServerID: "s", ChannelID: "c"}).Validate(); !errors.Is(err, ErrMissingField) {
		t.Errorf("Validate() = %v", err)
	}
}

func TestParticipantLeaveCarriesBothIDFields(t *testing.T) {
	data, err := json.Marshal(ParticipantLeavePayload{ChannelID: "c1", ParticipantID: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["participantId"] != "p1" || raw["odId"] != "p1" || raw["channelId"] != "c1" {
		t.Fatalf("payload = %s", data)
	}

	var p ParticipantLeavePayload
	if err := json.Unmarshal([]byte(`{"channelId":"c1","odId":"p2"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.ParticipantID != "p2" {
		t.Fatalf("odId only: %+v", p)
	}
}
