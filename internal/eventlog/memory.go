package eventlog

import (
	"context"
	"sync"

	"github.com/dkeye/Presence/internal/domain"
)

const DefaultCapacity = 4096

// MemoryStore is a bounded ring of the most recent messages. The oldest
// entry is overwritten once full. Readers and the recorder run on different
// goroutines, hence the lock.
type MemoryStore struct {
	mu     sync.RWMutex
	buf    []domain.Message
	next   int
	full   bool
	closed bool
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{buf: make([]domain.Message, capacity)}
}

func (s *MemoryStore) Append(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.buf[s.next] = msg
	s.next = (s.next + 1) % len(s.buf)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

// Since returns matches oldest first, keeping the newest Limit entries.
func (s *MemoryStore) Since(_ context.Context, q Query) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]domain.Message, 0)
	for _, msg := range s.ordered() {
		if q.matches(msg) {
			out = append(out, msg)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.buf)
	}
	return s.next
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ordered() []domain.Message {
	if !s.full {
		return s.buf[:s.next]
	}
	out := make([]domain.Message, 0, len(s.buf))
	out = append(out, s.buf[s.next:]...)
	return append(out, s.buf[:s.next]...)
}
