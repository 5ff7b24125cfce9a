// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package callbot

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/emiago/callbot/eventsocket"
	"github.com/emiago/callbot/speech"
)

// Transport is the slice of the event socket connection a call session
// uses. *eventsocket.Conn satisfies it.
type Transport interface {
	API(cmd string) (string, error)
	Execute(app string, arg string) error
	RecvEventTimed(d time.Duration) (*eventsocket.Event, error)
}

var _ Transport = (*eventsocket.Conn)(nil)

// EndReason explains how a call session finished.
type EndReason string

const (
	EndNotAnswered      EndReason = "not_answered"
	EndInitiationFailed EndReason = "initiation_failed"
	EndGreetingFailed   EndReason = "greeting_failed"
	EndCallerHungUp     EndReason = "caller_hung_up"
	EndCallerSilent     EndReason = "caller_silent"
	EndMaxTurnsReached  EndReason = "max_turns_reached"
)

// Call is one live call session. It owns the per-call directory where
// the whole-call recording and per-turn artifacts land, and accumulates
// the conversation history across turns.
type Call struct {
	UUID   string
	Number string

	tr      Transport
	log     zerolog.Logger
	dir     string
	history []speech.Message
	turns   int
}

func newCall(tr Transport, uuid, number, rootDir string, logger zerolog.Logger) *Call {
	return &Call{
		UUID:   uuid,
		Number: number,
		tr:     tr,
		log:    logger.With().Str("call", uuid).Logger(),
		dir:    filepath.Join(rootDir, uuid),
	}
}

// Dir is the per-call artifact directory.
func (c *Call) Dir() string { return c.dir }

// History returns the conversation so far, oldest first.
func (c *Call) History() []speech.Message { return c.history }

func (c *Call) addUser(text string)      { c.history = append(c.history, speech.Message{Role: speech.RoleUser, Content: text}) }
func (c *Call) addAssistant(text string) { c.history = append(c.history, speech.Message{Role: speech.RoleAssistant, Content: text}) }

// Turns is the number of completed conversation turns.
func (c *Call) Turns() int { return c.turns }

// Active asks the switch whether the channel still exists. Command
// failure is treated as gone.
func (c *Call) Active() bool {
	res, err := c.tr.API("uuid_exists " + c.UUID)
	if err != nil {
		return false
	}
	return res == "true"
}

// Hangup kills the channel. Safe to call on an already dead channel.
func (c *Call) Hangup() {
	if _, err := c.tr.API("uuid_kill " + c.UUID); err != nil {
		c.log.Debug().Err(err).Msg("uuid_kill failed")
	}
}

func (c *Call) recordingPath() string {
	return filepath.Join(c.dir, "call.wav")
}

func (c *Call) turnCallerPath(n int) string {
	return filepath.Join(c.dir, fmt.Sprintf("turn_%d_caller.wav", n))
}

func (c *Call) turnReplyPath(n int) string {
	return filepath.Join(c.dir, fmt.Sprintf("turn_%d_reply.wav", n))
}

// StartCallRecording starts the whole-call recording into the session
// dir. It records both legs until stopped or hangup.
func (c *Call) StartCallRecording(maxDuration time.Duration) error {
	cmd := fmt.Sprintf("uuid_record %s start %s %d", c.UUID, c.recordingPath(), int(maxDuration.Seconds()))
	_, err := c.tr.API(cmd)
	return err
}

// StopCallRecording stops the whole-call recording. Best effort, the
// channel may already be gone.
func (c *Call) StopCallRecording() {
	cmd := fmt.Sprintf("uuid_record %s stop %s", c.UUID, c.recordingPath())
	if _, err := c.tr.API(cmd); err != nil {
		c.log.Debug().Err(err).Msg("Stopping call recording failed")
	}
}

// awaitAnswer waits for CHANNEL_ANSWER of this channel. Hangup or
// timeout means the call was not answered.
func (c *Call) awaitAnswer(ctx context.Context, timeout time.Duration) error {
	ev, err := awaitSignal(ctx, c.tr, c.UUID, timeout, eventsocket.EventChannelAnswer, eventsocket.EventChannelHangup)
	if err != nil {
		return err
	}
	if ev.Name() == eventsocket.EventChannelHangup {
		return fmt.Errorf("channel hung up before answer. cause=%s", ev.Get("Hangup-Cause"))
	}
	return nil
}
