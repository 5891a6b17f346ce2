package core

import "errors"

var ErrBackpressure = errors.New("backpressure")

// ConnID identifies one live transport session.
type ConnID string

// Frame is an encoded wire payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
// TrySend must never block: a full buffer returns ErrBackpressure.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
