package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/config"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/eventlog"
	"github.com/dkeye/Presence/internal/wire"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// syncRecorder appends on the caller's goroutine so tests can read back
// immediately.
type syncRecorder struct{ store eventlog.Store }

func (r syncRecorder) Record(msg domain.Message) bool {
	return r.store.Append(context.Background(), msg) == nil
}

type testHub struct {
	srv  *httptest.Server
	orch *orch.Orchestrator
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	// socket pumps outlive individual tests, so logs go to stderr
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	store := eventlog.NewMemoryStore(64)
	o := orch.New(orch.Options{
		Recorder: syncRecorder{store},
		Resync:   app.NewResync(store, 100),
	})
	ctx, cancel := context.WithCancel(context.Background())
	go o.Run(ctx)

	cfg := &config.Config{
		Mode:       "test",
		Secret:     "test-secret",
		ReadLimit:  1 << 16,
		SendBuffer: 16,
		RateLimit:  config.RateLimitConfig{Messages: 2, Interval: time.Minute},
	}
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-o.Done()
	})
	return &testHub{srv: srv, orch: o}
}

func (h *testHub) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/ws/signal?name=" + user
	header := http.Header{}
	header.Set("Cookie", "ct="+user)
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial %s: %v", user, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func (h *testHub) request(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.AddCookie(&http.Cookie{Name: "ct", Value: user})
	}
	rec := httptest.NewRecorder()
	h.srv.Config.Handler.ServeHTTP(rec, req)
	return rec
}

func send(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := wire.Marshal(event, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func next(t *testing.T, ws *websocket.Conn) wire.Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	env, err := wire.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env
}

func expect(t *testing.T, ws *websocket.Conn, event string) wire.Envelope {
	t.Helper()
	env := next(t, ws)
	if env.Event != event {
		t.Fatalf("got event %s (%s), want %s", env.Event, env.Data, event)
	}
	return env
}

// barrier waits until every frame sent before it has been handled.
func barrier(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	send(t, ws, wire.HeartbeatPing, wire.HeartbeatPayload{Timestamp: 1})
	expect(t, ws, wire.HeartbeatPong)
}

func TestHealth(t *testing.T) {
	h := newTestHub(t)
	rec := h.request(t, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Status != "ok" || body.Connections != 0 {
		t.Fatalf("body = %+v", body)
	}
	if !strings.Contains(rec.Header().Get("Set-Cookie"), "ct=") {
		t.Fatal("client token cookie not issued")
	}
}

// TestVoicePresenceOverWebsocket walks snapshot, join and the implicit
// leave of a dropped socket.
func TestVoicePresenceOverWebsocket(t *testing.T) {
	h := newTestHub(t)
	watcher := h.dial(t, "alice")
	send(t, watcher, wire.VoiceJoinServer, "s1")
	snap := expect(t, watcher, wire.VoiceUpdate("s1"))
	if string(snap.Data) != "{}" {
		t.Fatalf("empty snapshot = %s", snap.Data)
	}

	speaker := h.dial(t, "bob")
	send(t, speaker, wire.VoiceJoinChannel, wire.JoinChannelPayload{
		ServerID: "s1", ChannelID: "v1",
		Participant: domain.Participant{ID: "p-bob", Name: "bob"},
	})
	join := expect(t, watcher, wire.ParticipantJoin("s1"))
	var jp wire.ParticipantJoinPayload
	_ = json.Unmarshal(join.Data, &jp)
	if jp.ChannelID != "v1" || jp.Participant.ID != "p-bob" || jp.Participant.ChannelID != "v1" {
		t.Fatalf("join payload = %+v", jp)
	}

	rec := h.request(t, http.MethodGet, "/api/servers/s1/voice", "", nil)
	var voice map[string][]domain.Participant
	_ = json.Unmarshal(rec.Body.Bytes(), &voice)
	if len(voice["v1"]) != 1 {
		t.Fatalf("voice snapshot = %s", rec.Body.String())
	}

	_ = speaker.Close()
	leave := expect(t, watcher, wire.ParticipantLeave("s1"))
	var lp wire.ParticipantLeavePayload
	_ = json.Unmarshal(leave.Data, &lp)
	if lp.ChannelID != "v1" || lp.ParticipantID != "p-bob" {
		t.Fatalf("leave payload = %+v", lp)
	}
}

func TestTypingRelayExcludesSender(t *testing.T) {
	h := newTestHub(t)
	a := h.dial(t, "alice")
	b := h.dial(t, "bob")
	for _, ws := range []*websocket.Conn{a, b} {
		send(t, ws, wire.ChannelSubscribe, "c1")
		barrier(t, ws)
	}

	send(t, a, wire.TypingStart, wire.TypingPayload{ChannelID: "c1", UserID: "alice", UserName: "alice"})
	got := expect(t, b, wire.Typing("c1"))
	var p wire.TypingPayload
	_ = json.Unmarshal(got.Data, &p)
	if p.UserID != "alice" || p.UserName != "alice" {
		t.Fatalf("typing payload = %+v", p)
	}
	// the sender's next frame is its own pong, not an echo
	barrier(t, a)
}

func TestMalformedInputGetsErrorEvent(t *testing.T) {
	h := newTestHub(t)
	ws := h.dial(t, "alice")

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	expect(t, ws, wire.Error)

	send(t, ws, "voice:dance", nil)
	env := expect(t, ws, wire.Error)
	var p wire.ErrorPayload
	_ = json.Unmarshal(env.Data, &p)
	if p.Event != "voice:dance" {
		t.Fatalf("error payload = %+v", p)
	}

	send(t, ws, wire.TypingStart, wire.TypingPayload{ChannelID: "c1", UserID: "alice"})
	expect(t, ws, wire.Error)

	// the connection survives bad input
	barrier(t, ws)
}

func TestPublishFanOutAndResync(t *testing.T) {
	h := newTestHub(t)
	sub := h.dial(t, "bob")
	send(t, sub, wire.ChannelSubscribe, "c1")
	barrier(t, sub)

	rec := h.request(t, http.MethodPost, "/api/servers/s1/channels/c1/messages", "alice", map[string]string{"content": "  hello  ", "authorName": "alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish status = %d: %s", rec.Code, rec.Body.String())
	}
	env := expect(t, sub, wire.ChatMessages("c1"))
	var msg domain.Message
	_ = json.Unmarshal(env.Data, &msg)
	if msg.Content != "hello" || msg.AuthorID != "alice" {
		t.Fatalf("message = %+v", msg)
	}

	send(t, sub, wire.SyncMissed, wire.SyncRequest{Since: 0})
	resp := expect(t, sub, wire.SyncResponse)
	var sync wire.SyncResponsePayload
	_ = json.Unmarshal(resp.Data, &sync)
	if len(sync.Messages) != 1 || sync.Messages[0].ID != msg.ID {
		t.Fatalf("resync = %+v", sync)
	}

	rec = h.request(t, http.MethodGet, "/api/channels/c1/messages?since=0", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), msg.ID) {
		t.Fatalf("history = %d %s", rec.Code, rec.Body.String())
	}
	rec = h.request(t, http.MethodGet, "/api/channels/other/messages?since=0", "", nil)
	if strings.Contains(rec.Body.String(), msg.ID) {
		t.Fatalf("history of other channel leaked %s", msg.ID)
	}
}

func TestPublishValidationAndRateLimit(t *testing.T) {
	h := newTestHub(t)
	path := "/api/servers/s1/channels/c1/messages"

	if rec := h.request(t, http.MethodPost, path, "alice", map[string]string{"content": "   "}); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank content status = %d", rec.Code)
	}
	if rec := h.request(t, http.MethodPost, path, "alice", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing content status = %d", rec.Code)
	}
	// the blank message above counted against the window
	if rec := h.request(t, http.MethodPost, path, "alice", map[string]string{"content": "one"}); rec.Code != http.StatusCreated {
		t.Fatalf("first message status = %d", rec.Code)
	}
	if rec := h.request(t, http.MethodPost, path, "alice", map[string]string{"content": "two"}); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over limit status = %d", rec.Code)
	}
	if rec := h.request(t, http.MethodPost, path, "bob", map[string]string{"content": "hi"}); rec.Code != http.StatusCreated {
		t.Fatalf("other user status = %d", rec.Code)
	}
	if rec := h.request(t, http.MethodGet, "/api/channels/c1/messages?since=abc", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad since status = %d", rec.Code)
	}
}

func TestConnectionsListing(t *testing.T) {
	h := newTestHub(t)
	ws := h.dial(t, "alice")
	send(t, ws, wire.ChannelSubscribe, "c1")
	barrier(t, ws)

	rec := h.request(t, http.MethodGet, "/api/connections", "", nil)
	var conns []app.ConnectionInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &conns); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(conns) != 1 || conns[0].UserID != "alice" || conns[0].Username != "alice" {
		t.Fatalf("connections = %+v", conns)
	}
	if len(conns[0].Rooms) != 1 || conns[0].Rooms[0] != "channel:c1" {
		t.Fatalf("rooms = %v", conns[0].Rooms)
	}
}
