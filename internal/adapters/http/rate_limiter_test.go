package http

import (
	"testing"
	"time"

	"github.com/dkeye/Presence/internal/domain"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	now := time.Unix(100, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatal("first two attempts rejected")
	}
	if rl.Allow("u1") {
		t.Fatal("third attempt inside the window allowed")
	}
	if !rl.Allow("u2") {
		t.Fatal("limits leaked across users")
	}

	now = now.Add(time.Second)
	if !rl.Allow("u1") {
		t.Fatal("attempt after the window rejected")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Second)
	for i := 0; i < 10; i++ {
		if !rl.Allow("u1") {
			t.Fatal("disabled limiter rejected")
		}
	}
}

func TestRateLimiterForgetsIdleUsers(t *testing.T) {
	rl := NewRateLimiter(5, time.Second)
	now := time.Unix(100, 0)
	rl.now = func() time.Time { return now }

	for _, uid := range []domain.UserID{"u1", "u2", "u3"} {
		rl.Allow(uid)
	}
	if n := rl.Tracked(); n != 3 {
		t.Fatalf("tracked = %d, want 3", n)
	}

	now = now.Add(2 * time.Second)
	rl.Allow("u4")
	if n := rl.Tracked(); n != 1 {
		t.Fatalf("tracked after idle window = %d, want 1", n)
	}
}
