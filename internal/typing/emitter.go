package typing

import "time"

// Emitter debounces outbound typing events for one input box.
type Emitter struct {
	Debounce time.Duration
	Send     func() error

	last time.Time
}

func NewEmitter(debounce time.Duration, send func() error) *Emitter {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Emitter{Debounce: debounce, Send: send}
}

// Input is called on every change of the input value. It sends at most one
// event per debounce window and reports whether it did.
func (e *Emitter) Input(value string, now time.Time) (bool, error) {
	if !ShouldEmit(value, e.last, now, e.Debounce) {
		return false, nil
	}
	if err := e.Send(); err != nil {
		return false, err
	}
	e.last = now
	return true, nil
}
