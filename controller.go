// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package callbot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/emiago/callbot/speech"
)

// Canned lines spoken on recoverable failures. Synthesized on demand
// into the session dir.
var (
	RetryLine   = "Sorry, I didn't catch that. Could you say that again?"
	ApologyLine = "Sorry, I'm having a little trouble right now. Let's keep going."
	GoodbyeLine = "Thanks for talking with me. Goodbye!"
)

// ClosePause is slept after the goodbye before killing the channel, so
// the tail of the whole-call recording is not clipped.
var ClosePause = time.Second

// Controller drives a connected call through greeting, conversation
// turns and teardown. Service failures inside a turn never end the
// call; only hangup, silence and the turn limit do.
type Controller struct {
	Recorder *Recorder
	Player   *Player

	Transcriber speech.Transcriber
	Responder   speech.Responder
	Synthesizer speech.Synthesizer

	// Greeting is the audio reference played after answer. Empty skips
	// straight to the first turn.
	Greeting string
	MaxTurns int

	// SyncPlayback switches every playback to the inline execute
	// variant, for transports where broadcast completion events are not
	// reliable.
	SyncPlayback bool

	log zerolog.Logger
}

func NewController(tr speech.Transcriber, re speech.Responder, sy speech.Synthesizer) *Controller {
	return &Controller{
		Recorder:    NewRecorder(),
		Player:      NewPlayer(),
		Transcriber: tr,
		Responder:   re,
		Synthesizer: sy,
		MaxTurns:    3,
		log:         log.With().Str("component", "controller").Logger(),
	}
}

// Run takes an answered call through its whole life and returns how it
// ended. The channel is always dead and the whole-call recording always
// stopped when Run returns.
func (co *Controller) Run(ctx context.Context, call *Call) EndReason {
	logc := co.log.With().Str("call", call.UUID).Logger()

	if err := os.MkdirAll(call.Dir(), 0o755); err != nil {
		logc.Error().Err(err).Msg("Creating session dir failed")
	}

	if err := call.StartCallRecording(co.callRecordingCeiling()); err != nil {
		logc.Error().Err(err).Msg("Starting whole call recording failed")
	}

	if co.Greeting != "" {
		logc.Debug().Msg("Playing greeting")
		if _, err := co.play(ctx, call, co.Greeting); err != nil {
			logc.Error().Err(err).Msg("Greeting failed")
			return co.close(ctx, call, EndGreetingFailed)
		}
	}

	reason := EndMaxTurnsReached
	for n := 1; n <= co.MaxTurns; n++ {
		if !call.Active() {
			reason = EndCallerHungUp
			break
		}

		end, done := co.turn(ctx, call, n)
		if done {
			reason = end
			break
		}
	}

	return co.close(ctx, call, reason)
}

// turn runs one record/transcribe/respond/speak cycle. done reports the
// call must end with the returned reason.
func (co *Controller) turn(ctx context.Context, call *Call, n int) (EndReason, bool) {
	logt := co.log.With().Str("call", call.UUID).Int("turn", n).Logger()
	logt.Info().Msg("Turn started")

	rec, err := co.Recorder.Record(ctx, call, call.turnCallerPath(n))
	switch {
	case errors.Is(err, ErrHangup):
		return EndCallerHungUp, true
	case errors.Is(err, ErrNoRecording):
		logt.Info().Msg("Caller went silent")
		return EndCallerSilent, true
	case err != nil:
		logt.Error().Err(err).Msg("Turn recording failed")
		co.speak(ctx, call, "retry", RetryLine)
		return "", false
	}

	if !call.Active() {
		return EndCallerHungUp, true
	}

	text, err := co.Transcriber.Transcribe(ctx, rec)
	if err != nil {
		if errors.Is(err, speech.ErrNoSpeech) {
			logt.Info().Msg("Nothing transcribable in turn audio")
		} else {
			logt.Error().Err(err).Msg("Transcription failed")
		}
		co.speak(ctx, call, "retry", RetryLine)
		return "", false
	}
	logt.Info().Str("text", text).Msg("Caller said")
	call.addUser(text)

	reply, err := co.Responder.Respond(ctx, call.History())
	if err != nil {
		logt.Error().Err(err).Msg("Reply generation failed")
		co.speak(ctx, call, "apology", ApologyLine)
		return "", false
	}
	logt.Info().Str("text", reply).Msg("Replying")
	call.addAssistant(reply)
	call.turns++

	replyPath := call.turnReplyPath(n)
	if err := co.Synthesizer.Synthesize(ctx, reply, replyPath); err != nil {
		logt.Error().Err(err).Msg("Reply synthesis failed")
		return "", false
	}
	if ok, err := co.play(ctx, call, replyPath); err != nil || !ok {
		logt.Warn().Err(err).Msg("Reply playback did not finish")
	}
	return "", false
}

func (co *Controller) play(ctx context.Context, call *Call, ref string) (bool, error) {
	if co.SyncPlayback {
		return co.Player.PlaySync(ctx, call, ref)
	}
	return co.Player.Play(ctx, call, ref)
}

// close is the single teardown path. Says goodbye when the caller is
// still there, stops the recording and makes sure the channel is dead.
func (co *Controller) close(ctx context.Context, call *Call, reason EndReason) EndReason {
	logc := co.log.With().Str("call", call.UUID).Str("reason", string(reason)).Logger()
	logc.Info().Int("turns", call.Turns()).Msg("Closing call")

	if reason == EndMaxTurnsReached && call.Active() {
		co.speak(ctx, call, "goodbye", GoodbyeLine)
	}

	call.StopCallRecording()
	time.Sleep(ClosePause)

	if call.Active() {
		call.Hangup()
	}
	return reason
}

// speak synthesizes and plays a canned line. Never fatal.
func (co *Controller) speak(ctx context.Context, call *Call, tag string, line string) {
	path := fmt.Sprintf("%s/prompt_%s.wav", call.Dir(), tag)
	if err := co.Synthesizer.Synthesize(ctx, line, path); err != nil {
		co.log.Error().Err(err).Str("tag", tag).Msg("Synthesizing prompt failed")
		return
	}
	if ok, err := co.play(ctx, call, path); err != nil || !ok {
		co.log.Debug().Err(err).Str("tag", tag).Msg("Prompt playback did not finish")
	}
}

// callRecordingCeiling bounds the whole call recording: greeting plus
// every turn at full length plus margins.
func (co *Controller) callRecordingCeiling() time.Duration {
	perTurn := co.Recorder.MaxDuration + co.Player.Timeout + co.Recorder.SettleDelay
	return time.Duration(co.MaxTurns+1)*perTurn + time.Minute
}
