// Package typing implements the typing indicator lifecycle: sender-side
// debounce, receiver-side aggregation, expiry and display text. The functions
// are pure; the caller owns every timer.
package typing

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dkeye/Presence/internal/domain"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultTimeout  = 3000 * time.Millisecond
	DefaultSweep    = 1000 * time.Millisecond
)

// ShouldEmit reports whether a typing event may be sent for input.
func ShouldEmit(input string, lastEmit, now time.Time, debounce time.Duration) bool {
	if strings.TrimSpace(input) == "" {
		return false
	}
	return now.Sub(lastEmit) >= debounce
}

// Update refreshes the user's timestamp in place or appends a new entry.
// The input slice is not modified.
func Update(set []domain.TypingUser, id domain.UserID, name string, now time.Time) []domain.TypingUser {
	out := slices.Clone(set)
	ts := now.UnixMilli()
	for i := range out {
		if out[i].ID == id {
			out[i].Timestamp = ts
			return out
		}
	}
	return append(out, domain.TypingUser{ID: id, Name: name, Timestamp: ts})
}

// RemoveExpired keeps entries younger than timeout. An entry exactly
// timeout old is expired.
func RemoveExpired(set []domain.TypingUser, now time.Time, timeout time.Duration) []domain.TypingUser {
	nowMs, limit := now.UnixMilli(), timeout.Milliseconds()
	out := make([]domain.TypingUser, 0, len(set))
	for _, u := range set {
		if nowMs-u.Timestamp < limit {
			out = append(out, u)
		}
	}
	return out
}

// FormatText renders the indicator line in set order.
func FormatText(users []domain.TypingUser) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return users[0].Name + " is typing..."
	case 2:
		return users[0].Name + " and " + users[1].Name + " are typing..."
	default:
		return fmt.Sprintf("%d users are typing...", len(users))
	}
}
