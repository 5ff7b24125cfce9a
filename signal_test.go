// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package callbot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiago/callbot/eventsocket"
)

func fastSignals(t *testing.T) {
	t.Helper()
	prev := SignalPollInterval
	SignalPollInterval = 10 * time.Millisecond
	t.Cleanup(func() { SignalPollInterval = prev })
}

func TestAwaitSignalMatch(t *testing.T) {
	fastSignals(t)
	tr := newFakeTransport("abc")
	tr.push(eventsocket.EventChannelAnswer)

	ev, err := awaitSignal(context.Background(), tr, "abc", time.Second, eventsocket.EventChannelAnswer)
	require.NoError(t, err)
	assert.Equal(t, eventsocket.EventChannelAnswer, ev.Name())
}

func TestAwaitSignalDropsOthers(t *testing.T) {
	fastSignals(t)
	tr := newFakeTransport("abc")
	// Wrong channel, then wrong name, then the wanted one.
	tr.events <- eventsocket.NewEvent(eventsocket.EventChannelAnswer, map[string]string{"Unique-ID": "other"})
	tr.push(eventsocket.EventRecordStart)
	tr.push(eventsocket.EventChannelHangup)

	ev, err := awaitSignal(context.Background(), tr, "abc", time.Second, eventsocket.EventChannelHangup)
	require.NoError(t, err)
	assert.Equal(t, eventsocket.EventChannelHangup, ev.Name())
}

func TestAwaitSignalTimeout(t *testing.T) {
	fastSignals(t)
	tr := newFakeTransport("abc")

	start := time.Now()
	_, err := awaitSignal(context.Background(), tr, "abc", 50*time.Millisecond, eventsocket.EventChannelAnswer)
	require.ErrorIs(t, err, errSignalTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAwaitSignalTransientPollError(t *testing.T) {
	fastSignals(t)
	tr := newFakeTransport("abc")
	tr.recvErrs = []error{errors.New("read interrupted")}
	tr.push(eventsocket.EventChannelAnswer)

	ev, err := awaitSignal(context.Background(), tr, "abc", time.Second, eventsocket.EventChannelAnswer)
	require.NoError(t, err)
	assert.Equal(t, eventsocket.EventChannelAnswer, ev.Name())
}

func TestAwaitSignalClosedTransport(t *testing.T) {
	fastSignals(t)
	tr := newFakeTransport("abc")
	tr.recvErrs = []error{eventsocket.ErrClosed}

	_, err := awaitSignal(context.Background(), tr, "abc", time.Second, eventsocket.EventChannelAnswer)
	require.ErrorIs(t, err, eventsocket.ErrClosed)
}

func TestAwaitSignalCtxCancel(t *testing.T) {
	fastSignals(t)
	tr := newFakeTransport("abc")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := awaitSignal(ctx, tr, "abc", time.Second, eventsocket.EventChannelAnswer)
	require.ErrorIs(t, err, context.Canceled)
}
