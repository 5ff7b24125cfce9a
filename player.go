// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package callbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/emiago/callbot/audio"
	"github.com/emiago/callbot/eventsocket"
)

// SyncPlayMargin is slept on top of the probed clip duration by
// PlaySync, covering command latency on the channel.
var SyncPlayMargin = time.Second

// AudioPreparer resolves an audio reference into a playable local wav.
// audio.Preparer is the default implementation.
type AudioPreparer interface {
	Prepare(ctx context.Context, ref string, dir string) (string, error)
}

// Player plays audio into the caller leg and waits for completion.
// Completion is best effort: a false return means playback may have been
// cut short, callers log it and move on.
type Player struct {
	// Timeout is the ceiling on waiting for playback to finish.
	Timeout time.Duration

	prep AudioPreparer
	log  zerolog.Logger
}

func NewPlayer() *Player {
	return &Player{
		Timeout: 30 * time.Second,
		prep:    audio.Preparer{},
		log:     log.With().Str("component", "player").Logger(),
	}
}

// Play broadcasts ref into the caller leg and waits until the switch
// reports playback done. Returns true on a clean finish, false when the
// caller hung up or the wait ceiling passed.
func (p *Player) Play(ctx context.Context, call *Call, ref string) (bool, error) {
	path, err := p.prep.Prepare(ctx, ref, call.Dir())
	if err != nil {
		return false, fmt.Errorf("preparing audio %q: %w", ref, err)
	}

	cmd := fmt.Sprintf("uuid_broadcast %s %s aleg", call.UUID, path)
	res, err := call.tr.API(cmd)
	if err != nil {
		return false, fmt.Errorf("starting playback: %w", err)
	}
	// The switch reports rejections inside the body, not the reply.
	if strings.HasPrefix(res, "-ERR") {
		return false, fmt.Errorf("playback of %s rejected: %s", path, res)
	}

	ev, err := awaitSignal(ctx, call.tr, call.UUID, p.Timeout,
		eventsocket.EventPlaybackStop, eventsocket.EventChannelHangup)
	if err != nil {
		if errors.Is(err, errSignalTimeout) {
			p.log.Debug().Str("path", path).Msg("Playback completion wait timed out")
			return false, nil
		}
		return false, err
	}
	if ev.Name() == eventsocket.EventChannelHangup {
		return false, nil
	}
	return true, nil
}

// PlaySync executes playback inline on the channel and sleeps for the
// probed clip duration. Used on inbound connections where broadcast
// completion events are not reliable.
func (p *Player) PlaySync(ctx context.Context, call *Call, ref string) (bool, error) {
	path, err := p.prep.Prepare(ctx, ref, call.Dir())
	if err != nil {
		return false, fmt.Errorf("preparing audio %q: %w", ref, err)
	}

	info, err := audio.Probe(path)
	if err != nil {
		return false, fmt.Errorf("probing %s: %w", path, err)
	}

	if err := call.tr.Execute("playback", path); err != nil {
		return false, fmt.Errorf("starting playback: %w", err)
	}

	select {
	case <-time.After(info.Duration + SyncPlayMargin):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return true, nil
}
