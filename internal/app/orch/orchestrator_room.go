package orch

import (
	"context"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/wire"
)

func (o *Orchestrator) SubscribeVoiceScope(ctx context.Context, id core.ConnID, server domain.ServerID) error {
	var err error
	if derr := o.do(ctx, func() { err = o.Presence.SubscribeVoiceScope(id, server) }); derr != nil {
		return derr
	}
	return err
}

func (o *Orchestrator) UnsubscribeVoiceScope(ctx context.Context, id core.ConnID, server domain.ServerID) error {
	var err error
	if derr := o.do(ctx, func() { err = o.Presence.UnsubscribeVoiceScope(id, server) }); derr != nil {
		return derr
	}
	return err
}

// JoinChannel reports false for a duplicate join.
func (o *Orchestrator) JoinChannel(ctx context.Context, id core.ConnID, p wire.JoinChannelPayload) (bool, error) {
	var (
		joined bool
		err    error
	)
	if derr := o.do(ctx, func() {
		joined, err = o.Presence.JoinChannel(id, p.ServerID, p.ChannelID, p.Participant)
	}); derr != nil {
		return false, derr
	}
	return joined, err
}

// LeaveChannel reports false when the participant was not present.
func (o *Orchestrator) LeaveChannel(ctx context.Context, id core.ConnID, p wire.LeaveChannelPayload) (bool, error) {
	var (
		left bool
		err  error
	)
	if derr := o.do(ctx, func() {
		left, err = o.Presence.LeaveChannel(id, p.ServerID, p.ChannelID, p.Participant())
	}); derr != nil {
		return false, derr
	}
	return left, err
}

func (o *Orchestrator) SubscribeChannel(ctx context.Context, id core.ConnID, channel domain.ChannelID) error {
	var err error
	if derr := o.do(ctx, func() { err = o.Presence.SubscribeChannel(id, channel) }); derr != nil {
		return derr
	}
	return err
}

func (o *Orchestrator) UnsubscribeChannel(ctx context.Context, id core.ConnID, channel domain.ChannelID) error {
	var err error
	if derr := o.do(ctx, func() { err = o.Presence.UnsubscribeChannel(id, channel) }); derr != nil {
		return derr
	}
	return err
}

func (o *Orchestrator) Typing(ctx context.Context, id core.ConnID, p wire.TypingPayload) error {
	var err error
	if derr := o.do(ctx, func() { _, err = o.Presence.Typing(id, p) }); derr != nil {
		return derr
	}
	return err
}
