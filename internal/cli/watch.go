package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dkeye/Presence/internal/client"
	"github.com/dkeye/Presence/internal/config"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/reconnect"
	"github.com/dkeye/Presence/internal/typing"
	"github.com/dkeye/Presence/internal/unread"
	"github.com/dkeye/Presence/internal/wire"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to a hub and follow voice presence, typing and messages",
	Long: `Connects as a client. Lines typed on stdin emit typing events and are
posted to the first channel as chat messages.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("url", "http://localhost:8080", "hub base URL")
	watchCmd.Flags().String("server", "", "server id whose voice presence to follow")
	watchCmd.Flags().StringSlice("channel", nil, "channel ids to subscribe; the first one is the open channel")
	watchCmd.Flags().String("user", "", "user id (client token)")
	watchCmd.Flags().String("name", "", "display name")
	_ = watchCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(watchCmd)
}

type watcher struct {
	base     string
	server   domain.ServerID
	channels []domain.ChannelID
	user     domain.User
	cfg      *config.Config
	out      io.Writer
	http     *http.Client

	typing map[domain.ChannelID]*typing.Tracker
	unread *unread.Tracker

	mu       sync.Mutex
	seen     map[string]struct{}
	lastSeen int64
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(ConfigFile, nil)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	base, _ := flags.GetString("url")
	server, _ := flags.GetString("server")
	channels, _ := flags.GetStringSlice("channel")
	userID, _ := flags.GetString("user")
	name, _ := flags.GetString("name")

	user, err := domain.NewUser(userID, name)
	if err != nil {
		return err
	}
	w := newWatcher(strings.TrimRight(base, "/"), domain.ServerID(server), channels, *user, cfg, cmd.OutOrStdout())
	return w.run(ctx, cmd.InOrStdin())
}

func newWatcher(base string, server domain.ServerID, channels []string, user domain.User, cfg *config.Config, out io.Writer) *watcher {
	w := &watcher{
		base:   base,
		server: server,
		user:   user,
		cfg:    cfg,
		out:    out,
		http:   &http.Client{Timeout: 10 * time.Second},
		typing: make(map[domain.ChannelID]*typing.Tracker),
		unread: unread.NewTracker(user.ID),
		seen:   make(map[string]struct{}),
	}
	for _, ch := range channels {
		id := domain.ChannelID(ch)
		w.channels = append(w.channels, id)
		w.typing[id] = typing.NewTracker(user.ID, cfg.Typing.Timeout)
	}
	if len(w.channels) > 0 {
		w.unread.Open(w.channels[0])
	}
	return w
}

func (w *watcher) wsURL() string {
	u := strings.Replace(w.base, "http", "ws", 1) + "/api/ws/signal"
	if w.user.Username != domain.GuestName {
		u += "?name=" + url.QueryEscape(w.user.Username)
	}
	return u
}

func (w *watcher) header() http.Header {
	h := http.Header{}
	h.Set("Cookie", (&http.Cookie{Name: "ct", Value: string(w.user.ID)}).String())
	return h
}

func (w *watcher) run(ctx context.Context, in io.Reader) error {
	c := client.New(client.Options{
		URL:       w.wsURL(),
		Header:    w.header(),
		Heartbeat: w.cfg.Heartbeat.Interval,
		Backoff:   w.cfg.Reconnect,
	})
	w.bind(c)

	poller := client.NewPoller(w.cfg.Query.PollInterval, w.poll)
	poller.Attach(c)
	go poller.Run(ctx)
	go w.sweep(ctx)
	go w.readInput(ctx, c, in)

	err := c.Run(ctx)
	if err != nil {
		fmt.Fprintln(w.out, "hub unreachable, giving up")
	}
	return err
}

func (w *watcher) bind(c *client.Client) {
	c.OnConnect(func(c *client.Client) {
		if w.server != "" {
			_ = c.Emit(wire.VoiceJoinServer, w.server)
		}
		for _, ch := range w.channels {
			_ = c.Emit(wire.ChannelSubscribe, ch)
		}
	})
	c.OnStatus(func(s reconnect.State) {
		fmt.Fprintf(w.out, "[status] %s\n", s)
	})

	if w.server != "" {
		c.On(wire.VoiceUpdate(w.server), func(data json.RawMessage) {
			var snap map[domain.ChannelID][]domain.Participant
			if err := json.Unmarshal(data, &snap); err != nil {
				return
			}
			for ch, parts := range snap {
				fmt.Fprintf(w.out, "[voice] %s: %d in channel\n", ch, len(parts))
			}
		})
		c.On(wire.ParticipantJoin(w.server), func(data json.RawMessage) {
			var p wire.ParticipantJoinPayload
			if err := json.Unmarshal(data, &p); err == nil {
				fmt.Fprintf(w.out, "[voice] %s joined %s\n", p.Participant.Name, p.ChannelID)
			}
		})
		c.On(wire.ParticipantLeave(w.server), func(data json.RawMessage) {
			var p wire.ParticipantLeavePayload
			if err := json.Unmarshal(data, &p); err == nil {
				fmt.Fprintf(w.out, "[voice] %s left %s\n", p.ParticipantID, p.ChannelID)
			}
		})
	}

	for _, ch := range w.channels {
		tracker := w.typing[ch]
		c.On(wire.Typing(ch), func(data json.RawMessage) {
			var p wire.TypingPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return
			}
			if tracker.Observe(p, time.Now()) {
				fmt.Fprintf(w.out, "[%s] %s\n", p.ChannelID, tracker.Text())
			}
		})
		c.On(wire.ChatMessages(ch), func(data json.RawMessage) {
			var msg domain.Message
			if err := json.Unmarshal(data, &msg); err == nil {
				w.message(msg)
			}
		})
	}

	c.On(wire.SyncResponse, func(data json.RawMessage) {
		var resp wire.SyncResponsePayload
		if err := json.Unmarshal(data, &resp); err != nil {
			return
		}
		for _, msg := range resp.Messages {
			w.message(msg)
		}
	})
	c.On(wire.Error, func(data json.RawMessage) {
		log.Warn().Str("module", "cli.watch").RawJSON("error", data).Msg("hub rejected event")
	})
}

// message prints msg once and updates unread counts.
func (w *watcher) message(msg domain.Message) {
	w.mu.Lock()
	if _, dup := w.seen[msg.ID]; dup {
		w.mu.Unlock()
		return
	}
	w.seen[msg.ID] = struct{}{}
	if ts := msg.CreatedAt.UnixMilli(); ts > w.lastSeen {
		w.lastSeen = ts
	}
	w.mu.Unlock()

	w.unread.OnMessage(msg)
	fmt.Fprintf(w.out, "[%s] %s: %s (unread %d)\n", msg.ChannelID, msg.AuthorName, msg.Content, w.unread.Count(msg.ChannelID))
}

func (w *watcher) sweep(ctx context.Context) {
	interval := w.cfg.Typing.Sweep
	if interval <= 0 {
		interval = typing.DefaultSweep
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for ch, tr := range w.typing {
				if tr.Sweep(now) {
					fmt.Fprintf(w.out, "[%s] %s\n", ch, tr.Text())
				}
			}
		}
	}
}

// poll backfills messages over HTTP while the socket is down.
func (w *watcher) poll(ctx context.Context) error {
	w.mu.Lock()
	since := w.lastSeen
	w.mu.Unlock()
	for _, ch := range w.channels {
		resp, err := client.Query(ctx, w.cfg.Query.Policy, func(ctx context.Context) (wire.SyncResponsePayload, error) {
			var out wire.SyncResponsePayload
			err := w.do(ctx, http.MethodGet, fmt.Sprintf("/api/channels/%s/messages?since=%d", url.PathEscape(string(ch)), since), nil, &out)
			return out, err
		})
		if err != nil {
			return err
		}
		for _, msg := range resp.Messages {
			w.message(msg)
		}
	}
	return nil
}

func (w *watcher) readInput(ctx context.Context, c *client.Client, in io.Reader) {
	if len(w.channels) == 0 {
		return
	}
	ch := w.channels[0]
	emitter := typing.NewEmitter(w.cfg.Typing.Debounce, func() error {
		return c.Emit(wire.TypingStart, wire.TypingPayload{ChannelID: ch, UserID: w.user.ID, UserName: w.user.Username})
	})
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if _, err := emitter.Input(line, time.Now()); err != nil {
			log.Debug().Err(err).Str("module", "cli.watch").Msg("typing event")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := w.post(ctx, ch, line); err != nil {
			fmt.Fprintf(w.out, "[error] message not sent: %v\n", err)
		}
	}
}

func (w *watcher) post(ctx context.Context, ch domain.ChannelID, content string) error {
	if w.server == "" {
		return fmt.Errorf("--server is required to post messages")
	}
	body, err := json.Marshal(map[string]string{"content": content, "authorName": w.user.Username})
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/servers/%s/channels/%s/messages", url.PathEscape(string(w.server)), url.PathEscape(string(ch)))
	_, err = client.Query(ctx, w.cfg.Query.Policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.do(ctx, http.MethodPost, path, body, nil)
	})
	return err
}

func (w *watcher) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, w.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "ct", Value: string(w.user.ID)})
	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

