package app

import "github.com/dkeye/Presence/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a subscriber whose send buffer is full.
type Policy interface {
	OnBackPressure(room core.RoomService, id core.ConnID) BackpressureAction
}

// SimplePolicy kicks every slow subscriber. The kicked transport closes and
// the regular disconnect path cleans up its rooms.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.RoomService, core.ConnID) BackpressureAction {
	return KickMember
}

// TolerantPolicy drops the frame for the slow subscriber and keeps it.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(core.RoomService, core.ConnID) BackpressureAction {
	return DropFrame
}
