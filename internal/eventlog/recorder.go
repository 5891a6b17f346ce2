package eventlog

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Presence/internal/domain"
	"github.com/rs/zerolog/log"
)

const appendTimeout = 5 * time.Second

// Recorder writes messages to a Store on its own goroutine so a slow store
// never delays fan-out. Record never blocks; a full buffer drops the entry.
type Recorder struct {
	store Store
	queue chan domain.Message

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

func NewRecorder(store Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &Recorder{
		store: store,
		queue: make(chan domain.Message, buffer),
		done:  make(chan struct{}),
	}
}

// Record enqueues msg and reports whether it was accepted.
func (r *Recorder) Record(msg domain.Message) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return false
	}
	select {
	case r.queue <- msg:
		return true
	default:
		log.Warn().Str("module", "eventlog").Str("message", msg.ID).Msg("recorder buffer full, message not recorded")
		return false
	}
}

// Run drains the queue until Stop is called, then flushes what is left.
func (r *Recorder) Run() {
	defer close(r.done)
	for msg := range r.queue {
		r.write(msg)
	}
}

// Stop closes the queue and waits for Run to flush it or for ctx to end.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) write(msg domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := r.store.Append(ctx, msg); err != nil {
		log.Error().Err(err).Str("module", "eventlog").Str("message", msg.ID).Msg("append failed")
	}
}
