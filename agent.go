// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package callbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/emiago/callbot/eventsocket"
	"github.com/emiago/callbot/speech"
)

// Agent places and serves AI phone calls over the switch event socket.
// One Agent handles many calls; each call gets its own controller.
type Agent struct {
	conf *Config
	log  zerolog.Logger

	transcriber speech.Transcriber
	responder   speech.Responder
	synthesizer speech.Synthesizer
}

type AgentOption func(a *Agent)

// WithSpeech overrides the OpenAI-backed speech services. Used in tests
// and for swapping providers.
func WithSpeech(t speech.Transcriber, r speech.Responder, s speech.Synthesizer) AgentOption {
	return func(a *Agent) {
		a.transcriber = t
		a.responder = r
		a.synthesizer = s
	}
}

func WithLogger(l zerolog.Logger) AgentOption {
	return func(a *Agent) {
		a.log = l
	}
}

func NewAgent(conf *Config, opts ...AgentOption) *Agent {
	a := &Agent{
		conf: conf,
		log:  log.Logger,
	}
	for _, o := range opts {
		o(a)
	}
	if a.transcriber == nil {
		svc := speech.NewOpenAI(conf.OpenAI.APIKey)
		if conf.OpenAI.ChatModel != "" {
			svc.ChatModel = conf.OpenAI.ChatModel
		}
		if conf.OpenAI.TTSVoice != "" {
			svc.TTSVoice = openai.SpeechVoice(conf.OpenAI.TTSVoice)
		}
		if conf.OpenAI.Persona != "" {
			svc.Persona = conf.OpenAI.Persona
		}
		a.transcriber, a.responder, a.synthesizer = svc, svc, svc
	}
	return a
}

// controller builds a per-call controller from config.
func (a *Agent) controller() *Controller {
	co := NewController(a.transcriber, a.responder, a.synthesizer)
	co.MaxTurns = a.conf.Call.MaxTurns
	co.Greeting = a.conf.Greeting
	co.Recorder.MaxDuration = a.conf.Record.MaxDuration
	co.Recorder.SilenceThreshold = a.conf.Record.SilenceThreshold
	co.Recorder.SilenceDuration = a.conf.Record.SilenceDuration
	co.Recorder.MinBytes = a.conf.Record.MinBytes
	co.Recorder.SettleDelay = a.conf.Record.SettleDelay
	co.Player.Timeout = a.conf.Playback.Timeout
	co.SyncPlayback = a.conf.Playback.Sync
	return co
}

var subscribedEvents = []string{
	eventsocket.EventChannelAnswer,
	eventsocket.EventChannelHangup,
	eventsocket.EventRecordStart,
	eventsocket.EventRecordStop,
	eventsocket.EventPlaybackStop,
}

// DialOnce originates one outbound call to the configured destination
// and drives it to completion. Returns how the call ended; error only
// for transport level failures.
func (a *Agent) DialOnce(ctx context.Context) (EndReason, error) {
	conn, err := eventsocket.Dial(ctx, a.conf.Freeswitch.Addr, a.conf.Freeswitch.Password)
	if err != nil {
		return EndInitiationFailed, fmt.Errorf("connecting event socket: %w", err)
	}
	defer conn.Close()

	if err := conn.Events(subscribedEvents...); err != nil {
		return EndInitiationFailed, fmt.Errorf("subscribing events: %w", err)
	}

	cmd := fmt.Sprintf("originate {origination_caller_id_number=%s,ignore_early_media=true}sofia/gateway/%s/%s &park()",
		a.conf.Call.CallerID, a.conf.Call.Gateway, a.conf.Call.Destination)
	res, err := conn.API(cmd)
	if err != nil {
		return EndInitiationFailed, fmt.Errorf("originate: %w", err)
	}
	uuid, ok := strings.CutPrefix(res, "+OK ")
	if !ok {
		a.log.Error().Str("response", res).Msg("Originate rejected")
		return EndInitiationFailed, nil
	}
	uuid = strings.TrimSpace(uuid)

	call := newCall(conn, uuid, a.conf.Call.Destination, a.conf.Record.Dir, a.log)
	a.log.Info().Str("call", uuid).Str("destination", call.Number).Msg("Dialing")

	if err := call.awaitAnswer(ctx, a.conf.Call.AnswerTimeout); err != nil {
		a.log.Info().Err(err).Str("call", uuid).Msg("Call not answered")
		call.Hangup()
		return EndNotAnswered, nil
	}
	a.log.Info().Str("call", uuid).Msg("Answered")

	return a.controller().Run(ctx, call), nil
}

// Serve accepts inbound switch connections in outbound socket mode and
// runs a call session per connection. Blocks until ctx is done.
func (a *Agent) Serve(ctx context.Context) error {
	l, err := eventsocket.Listen(a.conf.Listen.Addr)
	if err != nil {
		return err
	}
	a.log.Info().Str("addr", l.Addr().String()).Msg("Serving inbound calls")
	return a.serveListener(ctx, l)
}

func (a *Agent) serveListener(ctx context.Context, l *eventsocket.Listener) error {
	return l.Serve(ctx, func(conn *eventsocket.Conn) {
		info := conn.Info()
		uuid := info.Get("Unique-ID")
		if uuid == "" {
			a.log.Error().Msg("Inbound connection without channel uuid")
			return
		}
		number := info.Get("Caller-Caller-ID-Number")

		if err := conn.Events(subscribedEvents...); err != nil {
			a.log.Error().Err(err).Msg("Subscribing events failed")
			return
		}
		if err := conn.Execute("answer", ""); err != nil {
			a.log.Error().Err(err).Str("call", uuid).Msg("Answer failed")
			return
		}

		call := newCall(conn, uuid, number, a.conf.Record.Dir, a.log)
		a.log.Info().Str("call", uuid).Str("caller", number).Msg("Inbound call answered")

		reason := a.controller().Run(ctx, call)
		a.log.Info().Str("call", uuid).Str("reason", string(reason)).Msg("Call finished")
	})
}
