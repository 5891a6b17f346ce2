// Package unread keeps per-channel unread counters for a client.
package unread

import (
	"sync"

	"github.com/dkeye/Presence/internal/domain"
)

// Calculate counts messages newer than lastReadID. A missing read marker, or
// one that no longer resolves to a message, makes every message unread.
func Calculate(messages []domain.Message, lastReadID string) int {
	if len(messages) == 0 {
		return 0
	}
	if lastReadID == "" {
		return len(messages)
	}
	var last *domain.Message
	for i := range messages {
		if messages[i].ID == lastReadID {
			last = &messages[i]
			break
		}
	}
	if last == nil {
		return len(messages)
	}
	n := 0
	for _, m := range messages {
		if m.CreatedAt.After(last.CreatedAt) {
			n++
		}
	}
	return n
}

// Tracker is the live unread state of one viewer.
type Tracker struct {
	Self domain.UserID

	mu      sync.Mutex
	current domain.ChannelID
	counts  map[domain.ChannelID]int
}

func NewTracker(self domain.UserID) *Tracker {
	return &Tracker{Self: self, counts: make(map[domain.ChannelID]int)}
}

// Seed sets a channel's initial count, e.g. from Calculate.
func (t *Tracker) Seed(channel domain.ChannelID, n int) {
	t.mu.Lock()
	t.counts[channel] = n
	t.mu.Unlock()
}

// OnMessage increments the channel unless it is being viewed or the message
// is the viewer's own. It reports whether the count changed.
func (t *Tracker) OnMessage(msg domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if msg.ChannelID == t.current || msg.AuthorID == t.Self {
		return false
	}
	t.counts[msg.ChannelID]++
	return true
}

// Open makes channel the viewed one and marks it read.
func (t *Tracker) Open(channel domain.ChannelID) {
	t.mu.Lock()
	t.current = channel
	t.counts[channel] = 0
	t.mu.Unlock()
}

func (t *Tracker) Current() domain.ChannelID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Tracker) Count(channel domain.ChannelID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[channel]
}
