// Package orch runs the hub event loop. Registry, rooms and voice state are
// only ever touched from the loop goroutine; every public method enqueues a
// command and waits for it to finish.
package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Presence/internal/app"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("hub stopped")

const defaultQueueSize = 256

// Recorder receives published messages after fan-out. Record must not block.
type Recorder interface {
	Record(msg domain.Message) bool
}

type Options struct {
	Policy    app.Policy
	Recorder  Recorder
	Resync    *app.Resync
	QueueSize int
}

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Voice    *core.VoiceState
	Presence *app.Presence
	Recorder Recorder
	Resync   *app.Resync

	cmds chan func()
	done chan struct{}
}

func New(opts Options) *Orchestrator {
	if opts.Policy == nil {
		opts.Policy = app.SimplePolicy{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Resync == nil {
		opts.Resync = app.NewResync(nil, 0)
	}
	reg := app.NewRegistry()
	rooms := app.NewRoomManager()
	voice := core.NewVoiceState()
	return &Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Voice:    voice,
		Presence: app.NewPresence(reg, rooms, voice, opts.Policy),
		Recorder: opts.Recorder,
		Resync:   opts.Resync,
		cmds:     make(chan func(), opts.QueueSize),
		done:     make(chan struct{}),
	}
}

// Run processes commands until ctx ends. Commands still queued at that point
// are abandoned and their callers get ErrClosed.
func (o *Orchestrator) Run(ctx context.Context) {
	log.Info().Str("module", "orch").Msg("hub loop started")
	defer func() {
		close(o.done)
		log.Info().Str("module", "orch").Msg("hub loop stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-o.cmds:
			fn()
		}
	}
}

// Done is closed once Run has returned.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}
	select {
	case o.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-o.done:
		// Run may have picked the command just before stopping.
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Connect registers a new transport session.
func (o *Orchestrator) Connect(ctx context.Context, id core.ConnID, user domain.User, sig core.SignalConnection) error {
	var err error
	if derr := o.do(ctx, func() { err = o.Registry.Register(id, user, sig) }); derr != nil {
		return derr
	}
	return err
}

// Disconnect unregisters the session; the presence listener performs the
// implicit leave. It reports false when the session was already gone.
func (o *Orchestrator) Disconnect(ctx context.Context, id core.ConnID) (bool, error) {
	var removed bool
	err := o.do(ctx, func() { removed = o.Registry.Unregister(id) })
	return removed, err
}

func (o *Orchestrator) Connections(ctx context.Context) ([]app.ConnectionInfo, error) {
	var out []app.ConnectionInfo
	err := o.do(ctx, func() { out = o.Registry.List() })
	return out, err
}

func (o *Orchestrator) RoomList(ctx context.Context) ([]core.RoomInfo, error) {
	var out []core.RoomInfo
	err := o.do(ctx, func() { out = o.Rooms.List() })
	return out, err
}

func (o *Orchestrator) Snapshot(ctx context.Context, server domain.ServerID) (map[domain.ChannelID][]domain.Participant, error) {
	var out map[domain.ChannelID][]domain.Participant
	err := o.do(ctx, func() { out = o.Presence.Snapshot(server) })
	return out, err
}
