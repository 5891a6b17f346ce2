// Package backoff holds the two retry schedules of the client: transport
// reconnect and data-layer query retry. They fail in different domains and
// are configured separately.
package backoff

import "time"

// Policy computes min(Initial*2^attempt, Max) for attempts below MaxAttempts.
type Policy struct {
	Initial     time.Duration `mapstructure:"initial"`
	Max         time.Duration `mapstructure:"max"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// Socket is the reconnect schedule: 1s, 2s, 4s, 8s, 16s.
func Socket() Policy {
	return Policy{Initial: time.Second, Max: 16 * time.Second, MaxAttempts: 5}
}

// Query is the read-through retry schedule, capped at 30s with 3 retries.
func Query() Policy {
	return Policy{Initial: time.Second, Max: 30 * time.Second, MaxAttempts: 3}
}

// Delay returns the wait before the 0-indexed attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Initial
	for i := 0; i < attempt; i++ {
		if d >= p.Max {
			return p.Max
		}
		d *= 2
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Exhausted reports whether attempt is past the last allowed one.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
