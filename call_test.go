// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package callbot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiago/callbot/eventsocket"
)

func TestCallPaths(t *testing.T) {
	tr := newFakeTransport("abc")
	call := testCall(tr, "abc", "/var/rec")

	assert.Equal(t, filepath.Join("/var/rec", "abc"), call.Dir())
	assert.Equal(t, filepath.Join("/var/rec", "abc", "call.wav"), call.recordingPath())
	assert.Equal(t, filepath.Join("/var/rec", "abc", "turn_2_caller.wav"), call.turnCallerPath(2))
	assert.Equal(t, filepath.Join("/var/rec", "abc", "turn_2_reply.wav"), call.turnReplyPath(2))
}

func TestCallAwaitAnswer(t *testing.T) {
	fastSignals(t)
	tr := newFakeTransport("abc")
	call := testCall(tr, "abc", t.TempDir())

	tr.push(eventsocket.EventChannelAnswer)
	require.NoError(t, call.awaitAnswer(context.Background(), time.Second))
}

func TestCallAwaitAnswerHangup(t *testing.T) {
	fastSignals(t)
	tr := newFakeTransport("abc")
	call := testCall(tr, "abc", t.TempDir())

	tr.events <- eventsocket.NewEvent(eventsocket.EventChannelHangup, map[string]string{
		"Unique-ID":    "abc",
		"Hangup-Cause": "NO_ANSWER",
	})
	err := call.awaitAnswer(context.Background(), time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NO_ANSWER")
}

func TestCallAwaitAnswerTimeout(t *testing.T) {
	fastSignals(t)
	tr := newFakeTransport("abc")
	call := testCall(tr, "abc", t.TempDir())

	err := call.awaitAnswer(context.Background(), 50*time.Millisecond)
	require.ErrorIs(t, err, errSignalTimeout)
}

func TestCallActive(t *testing.T) {
	tr := newFakeTransport("abc")
	call := testCall(tr, "abc", t.TempDir())

	assert.True(t, call.Active())
	tr.hangup()
	assert.False(t, call.Active())
}
