package typing

import (
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/wire"
)

// Tracker is the receiver-side typing set of one channel.
type Tracker struct {
	Self    domain.UserID
	Timeout time.Duration

	mu    sync.Mutex
	users []domain.TypingUser
}

func NewTracker(self domain.UserID, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{Self: self, Timeout: timeout}
}

// Observe folds one typing broadcast into the set. Events from Self are
// discarded and reported as false.
func (t *Tracker) Observe(ev wire.TypingPayload, now time.Time) bool {
	if ev.UserID == t.Self {
		return false
	}
	t.mu.Lock()
	t.users = Update(t.users, ev.UserID, ev.UserName, now)
	t.mu.Unlock()
	return true
}

// Sweep drops expired entries and reports whether anything changed.
func (t *Tracker) Sweep(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	before := len(t.users)
	t.users = RemoveExpired(t.users, now, t.Timeout)
	return len(t.users) != before
}

func (t *Tracker) Users() []domain.TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.users)
}

func (t *Tracker) Text() string {
	return FormatText(t.Users())
}
