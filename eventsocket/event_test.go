// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package eventsocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventBody(t *testing.T) {
	body := []byte("Event-Name: CHANNEL_HANGUP\nHangup-Cause: NORMAL_CLEARING\nvariable_sip_term_status: 200\n")
	ev, err := parseEventBody(body)
	require.NoError(t, err)

	assert.Equal(t, "CHANNEL_HANGUP", ev.Name())
	assert.Equal(t, "NORMAL_CLEARING", ev.Get("Hangup-Cause"))
	assert.Equal(t, "200", ev.Variable("sip_term_status"))
	assert.Empty(t, ev.Get("Not-There"))
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent("RECORD_STOP", map[string]string{"Record-File-Path": "/tmp/x.wav"})
	assert.Equal(t, "RECORD_STOP", ev.Name())
	assert.Equal(t, "/tmp/x.wav", ev.Get("Record-File-Path"))
}
