// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package callbot

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/emiago/callbot/eventsocket"
)

// SignalPollInterval is how long each receive poll blocks while waiting
// for a matching event.
var SignalPollInterval = 250 * time.Millisecond

var errSignalTimeout = errors.New("timed out waiting for event")

// awaitSignal blocks until the transport delivers one of the named
// events for the given channel uuid, the deadline passes or ctx is done.
// Events for other channels or with other names are dropped.
func awaitSignal(ctx context.Context, tr Transport, uuid string, timeout time.Duration, names ...string) (*eventsocket.Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, errSignalTimeout
		}

		ev, err := tr.RecvEventTimed(SignalPollInterval)
		if err != nil {
			if errors.Is(err, eventsocket.ErrClosed) {
				return nil, err
			}
			// Transient poll failures are advisory, the deadline rules.
			log.Debug().Err(err).Msg("Event poll failed")
			continue
		}
		if ev == nil {
			continue
		}

		if id := ev.Get("Unique-ID"); id != "" && id != uuid {
			continue
		}
		if !slices.Contains(names, ev.Name()) {
			log.Debug().Str("event", ev.Name()).Msg("Dropping unawaited event")
			continue
		}
		return ev, nil
	}
}
