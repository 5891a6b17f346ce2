package reconnect

import (
	"testing"
	"time"

	"github.com/dkeye/Presence/internal/backoff"
)

func TestIntentionalDisconnectIsTerminal(t *testing.T) {
	m := New(backoff.Socket())
	m.Connected(time.Unix(0, 0))
	if _, retry := m.Disconnected(true, time.Unix(10, 0)); retry {
		t.Fatal("intentional disconnect scheduled a retry")
	}
	if m.State() != Terminal {
		t.Fatalf("state = %v, want terminal", m.State())
	}
	if _, retry := m.Disconnected(false, time.Unix(11, 0)); retry {
		t.Fatal("terminal machine scheduled a retry")
	}
}

// TestGivesUpAfterMaxAttempts walks the full socket schedule.
func TestGivesUpAfterMaxAttempts(t *testing.T) {
	m := New(backoff.Socket())
	m.Connected(time.Unix(0, 0))

	d, ok := m.Disconnected(false, time.Unix(5, 0))
	if !ok || d != time.Second {
		t.Fatalf("first delay = %v, %v", d, ok)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, w := range want {
		d, ok = m.ConnectFailed()
		if !ok || d != w {
			t.Fatalf("attempt %d delay = %v, %v; want %v", i+1, d, ok, w)
		}
	}
	if _, ok = m.ConnectFailed(); ok {
		t.Fatal("fifth failure scheduled another attempt")
	}
	if m.State() != Terminal {
		t.Fatalf("state = %v, want terminal", m.State())
	}
}

func TestReconnectReturnsDisconnectTime(t *testing.T) {
	m := New(backoff.Socket())
	if _, resync := m.Connected(time.Unix(0, 0)); resync {
		t.Fatal("first connect asked for resync")
	}

	dropped := time.UnixMilli(12_345)
	m.Disconnected(false, dropped)
	m.ConnectFailed()
	// a second drop while retrying keeps the original disconnect time
	m.Disconnected(false, dropped.Add(time.Second))

	since, resync := m.Connected(dropped.Add(3 * time.Second))
	if !resync || !since.Equal(dropped) {
		t.Fatalf("since = %v, %v; want %v", since, resync, dropped)
	}
	if m.Attempt() != 0 || m.State() != Connected {
		t.Fatalf("after connect: attempt %d state %v", m.Attempt(), m.State())
	}
}

func TestInitialDialFailureStartsSchedule(t *testing.T) {
	m := New(backoff.Socket())
	if m.Attempt() != -1 {
		t.Fatalf("attempt before dial = %d", m.Attempt())
	}
	d, ok := m.ConnectFailed()
	if !ok || d != time.Second {
		t.Fatalf("first retry delay = %v, %v; want 1s", d, ok)
	}
	if _, resync := m.Connected(time.Unix(1, 0)); resync {
		t.Fatal("connect without a prior session asked for resync")
	}
}
